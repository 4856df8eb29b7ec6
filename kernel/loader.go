package kernel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	goplugin "plugin"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oracipher/kernel/errors"
	kplugin "github.com/oracipher/kernel/plugin"
	"github.com/oracipher/kernel/utils"
)

// moduleHandle is the kernel-private reference to one loaded code unit
// (spec.md S3 PluginMeta.module_handle; S9 "Dynamic code loading"). Go's
// plugin package caches opened .so files by path for the life of the
// process, so a plain reload would hand back stale code; handle.tag keeps
// every load unique.
type moduleHandle struct {
	tag  string // the "mk_plugin_<name>_<generation>_<8-char uuid>" cache key
	path string // the built .so's path on disk, removed on unload
	lib  *goplugin.Plugin
}

var loadGeneration atomic.Uint64

// buildDir is where the loader compiles entry files into .so units before
// opening them. Kept apart from the plugin's own bundle directory so a
// failed build never pollutes the source tree.
const buildDir = ".kernel-cache"

// loadTagFor mints the unique module-cache identifier spec.md S9
// describes: "mk_plugin_" + name, suffixed with a monotonic generation so
// successive reloads of the same plugin never collide with Go's
// path-keyed plugin cache.
func loadTagFor(name string) string {
	gen := loadGeneration.Add(1)
	return fmt.Sprintf("mk_plugin_%s_%d_%s", name, gen, uuid.NewString()[:8])
}

// buildAndOpen compiles entryFile as a Go plugin and opens it under a
// fresh, never-reused path, then looks up the "Plugin" factory symbol
// (spec.md S6 plugin contract). The produced moduleHandle.path is a
// throwaway build artifact the caller must remove on unload.
func buildAndOpen(ctx context.Context, name, entryFile string) (moduleHandle, kplugin.Factory, error) {
	if err := utils.CreateDir(buildDir); err != nil {
		return moduleHandle{}, nil, errors.NewLoadFailed(name, err)
	}

	tag := loadTagFor(name)
	soPath := fmt.Sprintf("%s/%s.so", buildDir, tag)

	cmd := exec.CommandContext(ctx, "go", "build", "-buildmode=plugin", "-o", soPath, entryFile)
	cmd.Env = os.Environ()
	if out, err := cmd.CombinedOutput(); err != nil {
		return moduleHandle{}, nil, errors.NewLoadFailed(name, fmt.Errorf("%w: %s", err, out))
	}

	lib, err := goplugin.Open(soPath)
	if err != nil {
		os.Remove(soPath)
		return moduleHandle{}, nil, errors.NewLoadFailed(name, err)
	}

	sym, err := lib.Lookup("Plugin")
	if err != nil {
		os.Remove(soPath)
		return moduleHandle{}, nil, errors.NewLoadFailed(name, fmt.Errorf("no Plugin factory exported: %w", err))
	}

	factory, ok := sym.(func(kplugin.Facade) kplugin.Instance)
	if !ok {
		if f, ok := sym.(*kplugin.Factory); ok {
			factory = *f
		} else {
			os.Remove(soPath)
			return moduleHandle{}, nil, errors.NewLoadFailed(name,
				fmt.Errorf("Plugin symbol does not conform to plugin.Factory"))
		}
	}

	return moduleHandle{tag: tag, path: soPath, lib: lib}, kplugin.Factory(factory), nil
}

// release removes the built .so backing handle. Go gives no way to unload
// an opened plugin library from the process (this is the "full symbol
// reclamation is best-effort" limitation spec.md S9 calls out); the best
// a kernel can do is stop referencing lib and delete the on-disk artifact
// so the cache key can never collide with a future load.
func (h moduleHandle) release() error {
	if h.path == "" {
		return nil
	}
	return os.Remove(h.path)
}
