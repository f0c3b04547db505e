// Package config loads server configuration: defaults, then an optional
// YAML file, then environment overrides, so main stays lean.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds runtime settings for the custodia server.
type Config struct {
	Addr            string
	DataDir         string
	JWTSigningKey   string
	JWTIssuer       string
	MasterKeyHex    string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ConsentFreshFor time.Duration
	RetentionPeriod time.Duration
	PurgeInterval   time.Duration
	TrustedProxies  []string
}

// fileConfig is the YAML shape. Durations are strings ("30s", "720h") so the
// file reads naturally; absent fields leave the defaults untouched.
type fileConfig struct {
	Addr            string   `yaml:"addr"`
	DataDir         string   `yaml:"dataDir"`
	JWTSigningKey   string   `yaml:"jwtSigningKey"`
	JWTIssuer       string   `yaml:"jwtIssuer"`
	MasterKeyHex    string   `yaml:"masterKeyHex"`
	RequestTimeout  string   `yaml:"requestTimeout"`
	ShutdownTimeout string   `yaml:"shutdownTimeout"`
	ConsentFreshFor string   `yaml:"consentFreshFor"`
	RetentionPeriod string   `yaml:"retentionPeriod"`
	PurgeInterval   string   `yaml:"purgeInterval"`
	TrustedProxies  []string `yaml:"trustedProxies"`
}

// defaults are development values. The signing and master keys must be
// overridden for any deployment that holds real data.
func defaults() Config {
	return Config{
		Addr:            ":8080",
		DataDir:         "./data",
		JWTSigningKey:   "dev-secret-key-change-in-production",
		JWTIssuer:       "custodia",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ConsentFreshFor: 30 * 24 * time.Hour,
		RetentionPeriod: 6 * 365 * 24 * time.Hour,
		PurgeInterval:   time.Hour,
	}
}

// Load builds a Config from defaults, the YAML file named by CUSTODIA_CONFIG
// (if set), and finally individual environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CUSTODIA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if err := fc.overlay(&cfg); err != nil {
			return Config{}, err
		}
	}

	overlayEnv(&cfg)

	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) overlay(cfg *Config) error {
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.JWTSigningKey != "" {
		cfg.JWTSigningKey = fc.JWTSigningKey
	}
	if fc.JWTIssuer != "" {
		cfg.JWTIssuer = fc.JWTIssuer
	}
	if fc.MasterKeyHex != "" {
		cfg.MasterKeyHex = fc.MasterKeyHex
	}
	if len(fc.TrustedProxies) > 0 {
		cfg.TrustedProxies = fc.TrustedProxies
	}
	for _, f := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.RequestTimeout, "requestTimeout", &cfg.RequestTimeout},
		{fc.ShutdownTimeout, "shutdownTimeout", &cfg.ShutdownTimeout},
		{fc.ConsentFreshFor, "consentFreshFor", &cfg.ConsentFreshFor},
		{fc.RetentionPeriod, "retentionPeriod", &cfg.RetentionPeriod},
		{fc.PurgeInterval, "purgeInterval", &cfg.PurgeInterval},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s duration %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("CUSTODIA_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CUSTODIA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CUSTODIA_JWT_SIGNING_KEY"); v != "" {
		cfg.JWTSigningKey = v
	}
	if v := os.Getenv("CUSTODIA_JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("CUSTODIA_MASTER_KEY_HEX"); v != "" {
		cfg.MasterKeyHex = v
	}
	overlayDuration(&cfg.RequestTimeout, "CUSTODIA_REQUEST_TIMEOUT")
	overlayDuration(&cfg.ShutdownTimeout, "CUSTODIA_SHUTDOWN_TIMEOUT")
	overlayDuration(&cfg.ConsentFreshFor, "CUSTODIA_CONSENT_FRESH_FOR")
	overlayDuration(&cfg.RetentionPeriod, "CUSTODIA_RETENTION_PERIOD")
	overlayDuration(&cfg.PurgeInterval, "CUSTODIA_PURGE_INTERVAL")
}

func overlayDuration(dst *time.Duration, name string) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// TrustedProxyPrefixes parses the configured proxy CIDRs.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}
