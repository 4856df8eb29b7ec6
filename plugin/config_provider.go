package plugin

import "encoding/json"

// manifestConfig is the ConfigProvider backing Facade.PluginConfig(): a
// plugin's own parsed config.json, exposed through type-safe getters.
type manifestConfig struct {
	settings map[string]any
}

// NewManifestConfig wraps a parsed config.json map as a ConfigProvider.
func NewManifestConfig(settings map[string]any) ConfigProvider {
	if settings == nil {
		settings = make(map[string]any)
	}
	return &manifestConfig{settings: settings}
}

func (c *manifestConfig) Get(key string) (any, bool) {
	v, ok := c.settings[key]
	return v, ok
}

func (c *manifestConfig) GetString(key string, defaultVal string) string {
	v, ok := c.settings[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func (c *manifestConfig) GetInt(key string, defaultVal int) int {
	v, ok := c.settings[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return defaultVal
	}
}

func (c *manifestConfig) GetBool(key string, defaultVal bool) bool {
	v, ok := c.settings[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func (c *manifestConfig) Bind(target any) error {
	data, err := json.Marshal(c.settings)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// emptyConfig is the ConfigProvider returned on manifest absence or parse
// failure (spec.md S4.4): every getter returns its default, never an error.
type emptyConfig struct{}

func (e *emptyConfig) Get(string) (any, bool)             { return nil, false }
func (e *emptyConfig) GetString(_ string, d string) string { return d }
func (e *emptyConfig) GetInt(_ string, d int) int          { return d }
func (e *emptyConfig) GetBool(_ string, d bool) bool       { return d }
func (e *emptyConfig) Bind(any) error                      { return nil }

// EmptyConfig returns a ConfigProvider that always returns defaults.
func EmptyConfig() ConfigProvider { return &emptyConfig{} }
