package kernel

import (
	"strings"
	"time"

	"github.com/oracipher/kernel/config"
	"github.com/oracipher/kernel/env_mode"
)

// Options is the kernel's configuration record (spec.md S9 "Configuration
// structs"), replacing the source's ad-hoc constants. Defaults mirror
// spec.md's reference values. Loaded via config.Config.BindWithDefaults,
// same as the teacher binds its own app config.
type Options struct {
	PluginRoot     string        `mapstructure:"plugin_root" default:"plugins"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size" default:"5"`
	StartTimeout   time.Duration `mapstructure:"start_timeout" default:"3s"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout" default:"2s"`
	TaskGrace      time.Duration `mapstructure:"task_grace" default:"1s"`
	EventBuffer    int           `mapstructure:"event_buffer" default:"1024"`

	// ThrottleLimit/ThrottleWindow bound how many capability calls
	// (Emit/Call combined) one plugin may make per window.
	ThrottleLimit  int           `mapstructure:"throttle_limit" default:"1000"`
	ThrottleWindow time.Duration `mapstructure:"throttle_window" default:"1s"`

	// ProtectedAdminKeys are exact-match protected global keys, on top of
	// the ProtectedPrefix rule (spec.md S4.3's reference policy).
	ProtectedAdminKeys []string `mapstructure:"protected_admin_keys" default:"admin"`
	ProtectedPrefix    string   `mapstructure:"protected_prefix" default:"kernel_"`
}

// LoadOptions reads kernel configuration the way the teacher's apps read
// theirs: viper-backed, defaults applied via creasty/defaults, optional
// file watch in development mode.
func LoadOptions(opts ...config.ConfigOptions) (Options, error) {
	var result Options

	co := config.DefaultConfigOptions()
	if len(opts) > 0 {
		co = opts[0]
	}
	if env_mode.Mode() == env_mode.DevMode {
		co.WatchAble = true
	}

	cfg, err := config.NewConfig(co)
	if err != nil {
		// No config file is not fatal: the kernel runs on defaults alone,
		// same fallback posture as an embedded library with no app.yaml.
		return DefaultOptions(), nil
	}
	if err := cfg.BindWithDefaults(&result); err != nil {
		return Options{}, err
	}
	return result, nil
}

// DefaultOptions returns spec.md's reference defaults with no config file
// involved — used by tests and by callers that construct a Kernel
// programmatically.
func DefaultOptions() Options {
	return Options{
		PluginRoot:         "plugins",
		WorkerPoolSize:     5,
		StartTimeout:       3 * time.Second,
		StopTimeout:        2 * time.Second,
		TaskGrace:          1 * time.Second,
		EventBuffer:        1024,
		ThrottleLimit:      1000,
		ThrottleWindow:     time.Second,
		ProtectedAdminKeys: []string{"admin"},
		ProtectedPrefix:    "kernel_",
	}
}

// ProtectedKeyPolicy decides whether a global-scope key write is allowed.
// spec.md S4.3 leaves the exact reserved-key policy an implementation
// choice; this is the reference policy, rejecting exact matches in
// ProtectedAdminKeys plus any key beginning with ProtectedPrefix.
type ProtectedKeyPolicy struct {
	adminKeys map[string]bool
	prefix    string
}

func newProtectedKeyPolicy(o Options) ProtectedKeyPolicy {
	set := make(map[string]bool, len(o.ProtectedAdminKeys))
	for _, k := range o.ProtectedAdminKeys {
		set[k] = true
	}
	return ProtectedKeyPolicy{adminKeys: set, prefix: o.ProtectedPrefix}
}

// IsProtected reports whether key is refused for a global-scope write.
func (p ProtectedKeyPolicy) IsProtected(key string) bool {
	if p.adminKeys[key] {
		return true
	}
	return p.prefix != "" && strings.HasPrefix(key, p.prefix)
}
