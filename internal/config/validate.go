package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireAPI reports whether the API section is complete enough to issue requests.
// Commands that only read local state skip this check.
func (c *Config) RequireAPI() error {
	if strings.TrimSpace(c.API.Endpoint) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/cdbs/config.toml"
		}
		return fmt.Errorf("api.endpoint is required. Set %s or edit %s (create with 'cdbs config init')", endpointEnvVar, defaultPath)
	}
	if strings.TrimSpace(c.API.Token) == "" {
		return fmt.Errorf("api.token is required. Set %s or add it to the [api] section", tokenEnvVar)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Endpoint != "" {
		parsed, err := url.Parse(c.API.Endpoint)
		if err != nil {
			return fmt.Errorf("api.endpoint: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("api.endpoint must use http or https, got %q", c.API.Endpoint)
		}
		if parsed.Host == "" {
			return fmt.Errorf("api.endpoint must include a host, got %q", c.API.Endpoint)
		}
	}
	if c.API.RequestTimeout <= 0 || c.API.RequestTimeout > maxRequestTimeoutSeconds {
		return fmt.Errorf("api.request_timeout must be between 1 and %d seconds", maxRequestTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxConcurrent <= 0 || c.Upload.MaxConcurrent > maxConcurrentUpperBound {
		return fmt.Errorf("upload.max_concurrent must be between 1 and %d", maxConcurrentUpperBound)
	}
	if c.Upload.MaxFiles <= 0 || c.Upload.MaxFiles > maxFilesUpperBound {
		return fmt.Errorf("upload.max_files must be between 1 and %d", maxFilesUpperBound)
	}
	if c.Upload.TransferTimeout < 0 {
		return errors.New("upload.transfer_timeout must be >= 0")
	}
	if accept := c.Upload.Accept; accept != "" {
		parts := strings.Split(accept, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("upload.accept must look like type/subtype or type/*, got %q", accept)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
