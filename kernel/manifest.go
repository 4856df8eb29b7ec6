package kernel

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/oracipher/kernel/errors"
	"github.com/oracipher/kernel/json"
	"github.com/oracipher/kernel/logging"
	"github.com/oracipher/kernel/plugin"
	"github.com/oracipher/kernel/utils"
	"go.uber.org/zap"
)

// rawManifest is config.json's on-disk shape (spec.md S6). description is
// accepted but ignored by the core, same as the spec names it.
type rawManifest struct {
	Name         string   `json:"name" validate:"required"`
	Version      string   `json:"version"`
	Dependencies []string `json:"dependencies"`
	Description  string   `json:"description"`
}

const manifestFileName = "config.json"

var manifestValidator = validator.New()

// scanner is the Manifest Scanner (C1): it walks a plugin root directory
// and yields one PluginMeta per immediate subdirectory carrying a readable
// config.json. Grounded on the teacher's directory-walking helpers in
// utils/files.go; malformed manifests are logged and skipped rather than
// aborting the scan (spec.md S4.1).
type scanner struct {
	root   string
	logger logging.Logger
}

func newScanner(root string, logger logging.Logger) *scanner {
	return &scanner{root: root, logger: logger}
}

// scan reads every immediate subdirectory of s.root and returns the
// PluginMeta records for ones with a valid manifest. Entries are returned
// in directory-listing (lexicographic) order, which — per spec.md S4.2 —
// becomes the tie-breaking order for the resolver.
func (s *scanner) scan() []*PluginMeta {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("plugin root unreadable", zap.String("root", s.root), zap.Error(err))
		return nil
	}

	var metas []*PluginMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bundleDir := filepath.Join(s.root, entry.Name())
		meta, err := s.scanOne(entry.Name(), bundleDir)
		if err != nil {
			s.logger.Warn("skipping malformed plugin manifest",
				zap.String("bundle", entry.Name()), zap.Error(err))
			continue
		}
		metas = append(metas, meta)
	}
	return metas
}

func (s *scanner) scanOne(dirName, bundleDir string) (*PluginMeta, error) {
	manifestPath := filepath.Join(bundleDir, manifestFileName)
	isDir, exists, err := utils.Exists(manifestPath)
	if err != nil {
		return nil, errors.NewManifestMalformed(dirName, err.Error())
	}
	if !exists || isDir {
		return nil, errors.NewManifestMalformed(dirName, "missing config.json")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.NewManifestMalformed(dirName, err.Error())
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewManifestMalformed(dirName, err.Error())
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, errors.NewManifestMalformed(dirName, err.Error())
	}
	if raw.Name == "" {
		raw.Name = dirName
	}
	if err := manifestValidator.Struct(&raw); err != nil {
		return nil, errors.NewManifestMalformed(raw.Name, err.Error())
	}

	version, err := plugin.ParseVersion(raw.Version)
	if err != nil {
		return nil, errors.NewManifestMalformed(raw.Name, err.Error())
	}

	deps := make([]plugin.Requirement, 0, len(raw.Dependencies))
	for _, d := range raw.Dependencies {
		req, err := plugin.ParseRequirement(d)
		if err != nil {
			// An unparseable requirement skips the bundle at scan time
			// with a missing-dep error naming the declaring plugin and
			// the raw requirement text.
			return nil, errors.NewDepMissing(raw.Name, d)
		}
		deps = append(deps, req)
	}

	entryFile, err := findEntryFile(bundleDir)
	if err != nil {
		return nil, errors.NewManifestMalformed(raw.Name, err.Error())
	}

	return &PluginMeta{
		Name:         raw.Name,
		Path:         bundleDir,
		Version:      version,
		Dependencies: deps,
		EntryFile:    entryFile,
		Settings:     settings,
		state:        plugin.StateDiscovered,
	}, nil
}

// findEntryFile locates the bundle's single Go source file other than
// config.json. Bundles are expected to carry exactly one entry file
// (spec.md S6's bundle layout); the first *.go file found is used.
func findEntryFile(bundleDir string) (string, error) {
	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".go" {
			return filepath.Join(bundleDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no .go entry file found in %s", bundleDir)
}
