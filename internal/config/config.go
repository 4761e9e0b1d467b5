// Package config loads the acquisition daemon's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied when a field is omitted from the JSON file.
const (
	DefaultPixelCapacity = 3694
	DefaultSerialPath    = "/dev/ttyACM0"
	DefaultUDPAddress    = ":8080"
	DefaultReadTimeout   = 10 * time.Millisecond
	DefaultRcvBuf        = 256 * 1024
)

// Config is the root configuration for the acquisition daemon. All fields
// are pointers so partial files are safe: omitted fields fall back to the
// Get* defaults.
type Config struct {
	// Sensor geometry.
	PixelCapacity *int `json:"pixel_capacity,omitempty"`

	// Serial transport.
	SerialPath     *string `json:"serial_path,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`

	// UDP transport.
	UDPAddress *string `json:"udp_address,omitempty"`
	RcvBuf     *int    `json:"udp_rcvbuf,omitempty"`

	// ReadTimeout is a duration string like "10ms": the bound on each
	// transport read, which also bounds how long Stop blocks.
	ReadTimeout *string `json:"read_timeout,omitempty"`
}

// Load reads and validates a config file. Partial configs are safe; the
// Get* methods supply defaults for omitted fields.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects values that would misconfigure the channel.
func (c *Config) Validate() error {
	if c.PixelCapacity != nil && *c.PixelCapacity <= 0 {
		return fmt.Errorf("pixel_capacity must be positive, got %d", *c.PixelCapacity)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}
	if c.RcvBuf != nil && *c.RcvBuf <= 0 {
		return fmt.Errorf("udp_rcvbuf must be positive, got %d", *c.RcvBuf)
	}
	if c.ReadTimeout != nil {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("read_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("read_timeout must be positive, got %s", d)
		}
	}
	return nil
}

// GetPixelCapacity returns the configured sensor pixel count or the default.
func (c *Config) GetPixelCapacity() int {
	if c.PixelCapacity != nil {
		return *c.PixelCapacity
	}
	return DefaultPixelCapacity
}

// GetSerialPath returns the serial device path or the default.
func (c *Config) GetSerialPath() string {
	if c.SerialPath != nil {
		return *c.SerialPath
	}
	return DefaultSerialPath
}

// GetSerialBaudRate returns the configured baud rate, or 0 to let the port
// options apply their own default.
func (c *Config) GetSerialBaudRate() int {
	if c.SerialBaudRate != nil {
		return *c.SerialBaudRate
	}
	return 0
}

// GetSerialDataBits returns configured data bits or 0 for the port default.
func (c *Config) GetSerialDataBits() int {
	if c.SerialDataBits != nil {
		return *c.SerialDataBits
	}
	return 0
}

// GetSerialStopBits returns configured stop bits or 0 for the port default.
func (c *Config) GetSerialStopBits() int {
	if c.SerialStopBits != nil {
		return *c.SerialStopBits
	}
	return 0
}

// GetSerialParity returns configured parity or "" for the port default.
func (c *Config) GetSerialParity() string {
	if c.SerialParity != nil {
		return *c.SerialParity
	}
	return ""
}

// GetUDPAddress returns the UDP bind address or the default.
func (c *Config) GetUDPAddress() string {
	if c.UDPAddress != nil {
		return *c.UDPAddress
	}
	return DefaultUDPAddress
}

// GetRcvBuf returns the UDP receive buffer size or the default.
func (c *Config) GetRcvBuf() int {
	if c.RcvBuf != nil {
		return *c.RcvBuf
	}
	return DefaultRcvBuf
}

// GetReadTimeout returns the transport read timeout or the default. Validate
// has already checked the duration parses.
func (c *Config) GetReadTimeout() time.Duration {
	if c.ReadTimeout != nil {
		if d, err := time.ParseDuration(*c.ReadTimeout); err == nil {
			return d
		}
	}
	return DefaultReadTimeout
}
