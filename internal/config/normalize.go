package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeEngines()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SCENECAST_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeProviders() {
	c.Providers.ScriptURL = strings.TrimSpace(c.Providers.ScriptURL)
	if c.Providers.ScriptURL == "" {
		if value, ok := os.LookupEnv("SCENECAST_SCRIPT_URL"); ok {
			c.Providers.ScriptURL = strings.TrimSpace(value)
		}
	}
	c.Providers.ImageURL = strings.TrimSpace(c.Providers.ImageURL)
	c.Providers.ComposeURL = strings.TrimSpace(c.Providers.ComposeURL)
	c.Providers.APIKey = strings.TrimSpace(c.Providers.APIKey)
	if c.Providers.APIKey == "" {
		if value, ok := os.LookupEnv("SCENECAST_PROVIDER_API_KEY"); ok {
			c.Providers.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Providers.RequestTimeout <= 0 {
		c.Providers.RequestTimeout = defaultProviderTimeout
	}
	c.Providers.Voice = strings.TrimSpace(c.Providers.Voice)
	if c.Providers.Voice == "" {
		c.Providers.Voice = defaultVoice
	}
	c.Providers.Language = strings.ToLower(strings.TrimSpace(c.Providers.Language))
	if c.Providers.Language == "" {
		c.Providers.Language = defaultLanguage
	}
}

func (c *Config) normalizeEngines() {
	c.Speech.Command = strings.TrimSpace(c.Speech.Command)
	if c.Speech.Command == "" {
		c.Speech.Command = defaultSpeechCommand
	}
	c.Speech.Model = strings.TrimSpace(c.Speech.Model)
	args := c.Speech.Args[:0]
	for _, arg := range c.Speech.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Speech.Args = args

	c.Transcription.Command = strings.TrimSpace(c.Transcription.Command)
	if c.Transcription.Command == "" {
		c.Transcription.Command = defaultTranscriptionCommand
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	if c.Transcription.Device == "" {
		c.Transcription.Device = defaultTranscriptionDevice
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
