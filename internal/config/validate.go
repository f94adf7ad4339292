package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueues(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueues() error {
	if err := ensurePositiveMap(map[string]int{
		"queues.speech_concurrency":        c.Queues.SpeechConcurrency,
		"queues.transcription_concurrency": c.Queues.TranscriptionConcurrency,
		"queues.composition_concurrency":   c.Queues.CompositionConcurrency,
		"queues.history_size":              c.Queues.HistorySize,
	}); err != nil {
		return err
	}
	if c.Queues.StatusLogInterval < 0 {
		return errors.New("queues.status_log_interval must be >= 0 (0 disables)")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for key, value := range map[string]string{
		"providers.script_url":  c.Providers.ScriptURL,
		"providers.image_url":   c.Providers.ImageURL,
		"providers.compose_url": c.Providers.ComposeURL,
	} {
		if value == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
		}
	}
	if c.Providers.ImageWidth <= 0 || c.Providers.ImageHeight <= 0 {
		return errors.New("providers.image_width and providers.image_height must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxParallelJobs <= 0 {
		return errors.New("workflow.max_parallel_jobs must be positive")
	}
	if c.Workflow.PurgeInterval < 0 {
		return errors.New("workflow.purge_interval must be >= 0 (0 disables)")
	}
	if c.Workflow.CompletedRetentionHours < 0 {
		return errors.New("workflow.completed_retention_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full ntfy URL, got %q", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
