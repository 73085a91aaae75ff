package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Field names used as keys of FieldsConfig.Lengths.
const (
	FieldEmployeeID = "employee_id"
	FieldWorkOrder  = "work_order"
	FieldChargeNo   = "charge_no"
	FieldUniqueNo   = "unique_no"
	FieldSerialNo   = "serial_no"
	FieldVendorCode = "vendor_code"
)

// DefaultVendorCode is attached to every decoded device message unless overridden.
const DefaultVendorCode = "16099680"

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Device     DeviceConfig     `yaml:"device"`
	Fields     FieldsConfig     `yaml:"fields"`
	Camera     CameraConfig     `yaml:"camera"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DeviceConfig holds the scanning device socket configuration.
type DeviceConfig struct {
	ListenHost         string `yaml:"listen_host"`
	ListenPort         int    `yaml:"listen_port"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	HoldDurationMs     int    `yaml:"hold_duration_ms"`
	ReconnectBackoffMs int    `yaml:"reconnect_backoff_ms"`
	ReadTimeoutMs      int    `yaml:"read_timeout_ms"`

	PollInterval     time.Duration `yaml:"-"`
	HoldDuration     time.Duration `yaml:"-"`
	ReconnectBackoff time.Duration `yaml:"-"`
	ReadTimeout      time.Duration `yaml:"-"` // zero blocks until the device replies
}

// Addr returns the host:port the device link listens on.
func (d DeviceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.ListenHost, d.ListenPort)
}

// FieldsConfig holds expected lengths for every session form field.
type FieldsConfig struct {
	Lengths    map[string]int `yaml:"field_lengths"`
	VendorCode string         `yaml:"vendor_code"`
}

// Length returns the expected length of the named field.
func (f FieldsConfig) Length(name string) int {
	return f.Lengths[name]
}

// CameraConfig holds the frame source configuration.
type CameraConfig struct {
	SnapshotURL     string        `yaml:"snapshot_url"`
	FrameIntervalMs int           `yaml:"frame_interval_ms"`
	FrameInterval   time.Duration `yaml:"-"`
	JPEGQuality     int           `yaml:"jpeg_quality"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset values and derives durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Device.ListenHost == "" {
		cfg.Device.ListenHost = "0.0.0.0"
	}
	if cfg.Device.ListenPort <= 0 {
		cfg.Device.ListenPort = 9876
	}
	if cfg.Device.PollIntervalMs <= 0 {
		cfg.Device.PollIntervalMs = 100
	}
	if cfg.Device.HoldDurationMs <= 0 {
		cfg.Device.HoldDurationMs = 3000
	}
	if cfg.Device.ReconnectBackoffMs <= 0 {
		cfg.Device.ReconnectBackoffMs = 2000
	}
	if cfg.Device.ReadTimeoutMs < 0 {
		cfg.Device.ReadTimeoutMs = 0
	}
	cfg.Device.PollInterval = time.Duration(cfg.Device.PollIntervalMs) * time.Millisecond
	cfg.Device.HoldDuration = time.Duration(cfg.Device.HoldDurationMs) * time.Millisecond
	cfg.Device.ReconnectBackoff = time.Duration(cfg.Device.ReconnectBackoffMs) * time.Millisecond
	cfg.Device.ReadTimeout = time.Duration(cfg.Device.ReadTimeoutMs) * time.Millisecond

	defaults := map[string]int{
		FieldEmployeeID: 10,
		FieldWorkOrder:  10,
		FieldChargeNo:   14,
		FieldUniqueNo:   7,
		FieldSerialNo:   3,
		FieldVendorCode: 8,
	}
	if cfg.Fields.Lengths == nil {
		cfg.Fields.Lengths = make(map[string]int, len(defaults))
	}
	for name, n := range defaults {
		if cfg.Fields.Lengths[name] <= 0 {
			cfg.Fields.Lengths[name] = n
		}
	}
	if cfg.Fields.VendorCode == "" {
		cfg.Fields.VendorCode = DefaultVendorCode
	}
	if len(cfg.Fields.VendorCode) != cfg.Fields.Lengths[FieldVendorCode] {
		log.Printf("fields.vendor_code %q does not match vendor_code length %d; captures will stay blocked until it is corrected manually",
			cfg.Fields.VendorCode, cfg.Fields.Lengths[FieldVendorCode])
	}

	if cfg.Camera.FrameIntervalMs <= 0 {
		cfg.Camera.FrameIntervalMs = 200
	}
	cfg.Camera.FrameInterval = time.Duration(cfg.Camera.FrameIntervalMs) * time.Millisecond
	if cfg.Camera.JPEGQuality <= 0 || cfg.Camera.JPEGQuality > 100 {
		cfg.Camera.JPEGQuality = 90
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
