package logging

import "github.com/kcaldas/devkit/pkg/config"

// NewLoggerFromConfig builds the process logger from toolkit configuration.
// Development mode keeps timestamps off for readable console output.
func NewLoggerFromConfig(cfg config.Toolkit) Logger {
	c := Config{
		Level:   ParseLevel(cfg.Log.Level),
		Format:  ParseFormat(cfg.Log.Format),
		AddTime: !cfg.IsDevelopment(),
	}
	if cfg.Log.File != "" {
		c.File = &FileConfig{Path: cfg.Log.File}
		c.AddTime = true
	}
	return NewLogger(c)
}
