package config

// LoggingConfig controls the category file logger. DebugMode is the master
// switch: when false nothing is written, regardless of per-category
// settings.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`
	Format     string          `yaml:"format" json:"format,omitempty"`
	File       string          `yaml:"file" json:"file,omitempty"`
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"`
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"`
}

// IsCategoryEnabled reports whether category should log. With DebugMode on,
// categories are opt-out: anything not listed in Categories stays enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	enabled, listed := c.Categories[category]
	return !listed || enabled
}
