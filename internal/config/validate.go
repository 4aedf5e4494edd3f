package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateGeocoding(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	if c.Workflow.ErrorRetryInterval < 1 {
		return errors.New("workflow.error_retry_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ThumbnailMaxEdge < 16 {
		return errors.New("pipeline.thumbnail_max_edge must be at least 16 pixels")
	}
	if c.Pipeline.ThumbnailQuality < 1 || c.Pipeline.ThumbnailQuality > 100 {
		return errors.New("pipeline.thumbnail_quality must be between 1 and 100")
	}
	if c.Pipeline.MaxAttempts < 1 {
		return errors.New("pipeline.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateGeocoding() error {
	if !c.Geocoding.Enabled {
		return nil
	}
	if c.Geocoding.BaseURL == "" {
		return errors.New("geocoding.base_url must be set when geocoding.enabled is true")
	}
	if _, err := url.Parse(c.Geocoding.BaseURL); err != nil {
		return fmt.Errorf("geocoding.base_url is not a valid URL: %w", err)
	}
	if c.Geocoding.RequestTimeout < 1 {
		return errors.New("geocoding.request_timeout must be at least 1 second")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
