// Package config manages meshnode daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete meshnode configuration.
type Config struct {
	Node    NodeConfig    `koanf:"node"`
	Radio   RadioConfig   `koanf:"radio"`
	Timing  TimingConfig  `koanf:"timing"`
	Store   StoreConfig   `koanf:"store"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// NodeConfig holds this node's identity on the mesh.
type NodeConfig struct {
	// Address is this node's 16-bit mesh address. 0 and 0xFFFF (the
	// broadcast address) are reserved and rejected by Validate.
	Address uint16 `koanf:"address"`
}

// RadioConfig selects and configures the transport a Node sends and
// receives packets through.
type RadioConfig struct {
	// Transport is "udp" (a real socket, fanning out to Peers) or
	// "memory" (an in-process bus, for running multiple nodes in one
	// process during development).
	Transport string `koanf:"transport"`

	// Listen is the local UDP address to bind, e.g. ":7777". Only used
	// when Transport is "udp".
	Listen string `koanf:"listen"`

	// Peers lists the UDP addresses of mesh peers to fan sends out to.
	// Only used when Transport is "udp".
	Peers []string `koanf:"peers"`

	// The fields below are substrate radio parameters. The simulated
	// transports (radio.UDP, radio.Memory) ignore them entirely. Validate
	// range-checks FreqHz, BWKHz and SF; all of them are logged at
	// startup so the configuration surface
	// already has a home for a future real LoRa driver.
	FreqHz   float64 `koanf:"freq_hz"`
	BWKHz    float64 `koanf:"bw_khz"`
	SF       int     `koanf:"sf"`
	TxDBm    float64 `koanf:"tx_dbm"`
	Syncword string  `koanf:"syncword"`
	Preamble int     `koanf:"preamble"`
}

// TimingConfig mirrors the protocol's compile-time timing constants
// (internal/chat's constants.go) with matching defaults. The bounded
// tables those constants size (PendingTable's 4 slots, DedupeWindow's
// ring, and so on) are fixed at compile time, so this section does not
// override the running protocol engine; it exists so deployments can
// see, validate, and log the effective values rather than having them
// buried in source.
type TimingConfig struct {
	PresenceIntervalMS     int64 `koanf:"presence_interval_ms"`
	PairBeaconIntervalMS   int64 `koanf:"pair_beacon_interval_ms"`
	RetryBaseMS            int64 `koanf:"retry_base_ms"`
	JitterWindowMS         int64 `koanf:"jitter_window_ms"`
	MaxUnicastAttempts     int   `koanf:"max_unicast_attempts"`
	MaxTotalAttempts       int   `koanf:"max_total_attempts"`
	DiscoveryCooldownMS    int64 `koanf:"discovery_cooldown_ms"`
	RouteFreshnessMS       int64 `koanf:"route_freshness_ms"`
	AirtimeDeferralFloorMS int64 `koanf:"airtime_deferral_floor_ms"`
}

// StoreConfig holds the persistent key/value store configuration.
type StoreConfig struct {
	// Path is the file the pairing store's keys and replay watermarks
	// are persisted to.
	Path string `koanf:"path"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. Node.Address
// is left at zero, which Validate rejects: every deployment must pick an
// explicit mesh address, so there is no safe default to fall back to.
func DefaultConfig() *Config {
	return &Config{
		Radio: RadioConfig{
			Transport: "udp",
			Listen:    ":7777",
			FreqHz:    915_000_000,
			BWKHz:     125,
			SF:        7,
			TxDBm:     14,
			Syncword:  "0x34",
			Preamble:  8,
		},
		// These defaults mirror internal/chat's compile-time constants of
		// the same name. They are duplicated rather than imported: config
		// sits below chat in the dependency graph (cmd/meshnoded wires a
		// Config into a chat.Node, not the reverse), so this package
		// cannot reference chat's constants directly without introducing
		// a cycle.
		Timing: TimingConfig{
			PresenceIntervalMS:     30_000,
			PairBeaconIntervalMS:   5_000,
			RetryBaseMS:            2_500,
			JitterWindowMS:         600,
			MaxUnicastAttempts:     3,
			MaxTotalAttempts:       5,
			DiscoveryCooldownMS:    5_000,
			RouteFreshnessMS:       45_000,
			AirtimeDeferralFloorMS: 1_200,
		},
		Store: StoreConfig{
			Path: "meshnode.db.json",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for meshnode configuration.
// Variables are named MESHNODE_<section>_<key>, e.g., MESHNODE_NODE_ADDRESS.
const envPrefix = "MESHNODE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (MESHNODE_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	MESHNODE_NODE_ADDRESS        -> node.address
//	MESHNODE_RADIO_LISTEN        -> radio.listen
//	MESHNODE_RADIO_SF            -> radio.sf
//	MESHNODE_TIMING_RETRY_BASE_MS -> timing.retry_base_ms
//	MESHNODE_STORE_PATH          -> store.path
//	MESHNODE_METRICS_ADDR        -> metrics.addr
//	MESHNODE_LOG_LEVEL           -> log.level
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms MESHNODE_RADIO_LISTEN -> radio.listen and
// MESHNODE_TIMING_RETRY_BASE_MS -> timing.retry_base_ms. Only the first
// underscore (the section/key boundary) becomes a dot; a plain
// ReplaceAll would also split multi-word leaf keys like retry_base_ms
// into retry.base.ms.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"radio.transport": defaults.Radio.Transport,
		"radio.listen":    defaults.Radio.Listen,
		"radio.freq_hz":   defaults.Radio.FreqHz,
		"radio.bw_khz":    defaults.Radio.BWKHz,
		"radio.sf":        defaults.Radio.SF,
		"radio.tx_dbm":    defaults.Radio.TxDBm,
		"radio.syncword":  defaults.Radio.Syncword,
		"radio.preamble":  defaults.Radio.Preamble,

		"timing.presence_interval_ms":      defaults.Timing.PresenceIntervalMS,
		"timing.pair_beacon_interval_ms":   defaults.Timing.PairBeaconIntervalMS,
		"timing.retry_base_ms":             defaults.Timing.RetryBaseMS,
		"timing.jitter_window_ms":          defaults.Timing.JitterWindowMS,
		"timing.max_unicast_attempts":      defaults.Timing.MaxUnicastAttempts,
		"timing.max_total_attempts":        defaults.Timing.MaxTotalAttempts,
		"timing.discovery_cooldown_ms":     defaults.Timing.DiscoveryCooldownMS,
		"timing.route_freshness_ms":        defaults.Timing.RouteFreshnessMS,
		"timing.airtime_deferral_floor_ms": defaults.Timing.AirtimeDeferralFloorMS,

		"store.path":   defaults.Store.Path,
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
		"log.level":    defaults.Log.Level,
		"log.format":   defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrMissingNodeAddress indicates node.address was left at its zero
	// value.
	ErrMissingNodeAddress = errors.New("node.address must be set")

	// ErrReservedNodeAddress indicates node.address collides with the
	// reserved broadcast address.
	ErrReservedNodeAddress = errors.New("node.address must not be the broadcast address (0xFFFF)")

	// ErrInvalidTransport indicates radio.transport is not a recognized
	// value.
	ErrInvalidTransport = errors.New("radio.transport must be \"udp\" or \"memory\"")

	// ErrMissingListenAddr indicates radio.listen is empty while
	// radio.transport is "udp".
	ErrMissingListenAddr = errors.New("radio.listen must not be empty when radio.transport is \"udp\"")

	// ErrEmptyStorePath indicates store.path is empty.
	ErrEmptyStorePath = errors.New("store.path must not be empty")

	// ErrInvalidRadioParam indicates one of the opaque substrate radio
	// parameters is out of the range a real LoRa driver could accept.
	// The simulated transports never read these fields, but a bogus
	// value here would silently carry through to a future driver.
	ErrInvalidRadioParam = errors.New("radio parameter out of range")

	// ErrInvalidTiming indicates one of the timing.* fields is non-positive.
	ErrInvalidTiming = errors.New("timing value must be positive")
)

// ValidTransports lists the recognized radio.transport strings.
var ValidTransports = map[string]bool{
	"udp":    true,
	"memory": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Node.Address == 0 {
		return ErrMissingNodeAddress
	}
	if cfg.Node.Address == 0xFFFF {
		return ErrReservedNodeAddress
	}

	if !ValidTransports[cfg.Radio.Transport] {
		return fmt.Errorf("radio.transport %q: %w", cfg.Radio.Transport, ErrInvalidTransport)
	}
	if cfg.Radio.Transport == "udp" && cfg.Radio.Listen == "" {
		return ErrMissingListenAddr
	}

	if cfg.Store.Path == "" {
		return ErrEmptyStorePath
	}

	if cfg.Radio.FreqHz <= 0 {
		return fmt.Errorf("radio.freq_hz %v: %w", cfg.Radio.FreqHz, ErrInvalidRadioParam)
	}
	if cfg.Radio.BWKHz <= 0 {
		return fmt.Errorf("radio.bw_khz %v: %w", cfg.Radio.BWKHz, ErrInvalidRadioParam)
	}
	if cfg.Radio.SF < 6 || cfg.Radio.SF > 12 {
		return fmt.Errorf("radio.sf %d: %w", cfg.Radio.SF, ErrInvalidRadioParam)
	}

	for name, v := range map[string]int64{
		"timing.presence_interval_ms":      cfg.Timing.PresenceIntervalMS,
		"timing.pair_beacon_interval_ms":   cfg.Timing.PairBeaconIntervalMS,
		"timing.retry_base_ms":             cfg.Timing.RetryBaseMS,
		"timing.jitter_window_ms":          cfg.Timing.JitterWindowMS,
		"timing.discovery_cooldown_ms":     cfg.Timing.DiscoveryCooldownMS,
		"timing.route_freshness_ms":        cfg.Timing.RouteFreshnessMS,
		"timing.airtime_deferral_floor_ms": cfg.Timing.AirtimeDeferralFloorMS,
	} {
		if v <= 0 {
			return fmt.Errorf("%s %d: %w", name, v, ErrInvalidTiming)
		}
	}
	if cfg.Timing.MaxUnicastAttempts <= 0 || cfg.Timing.MaxTotalAttempts <= 0 {
		return fmt.Errorf("timing.max_unicast_attempts/max_total_attempts: %w", ErrInvalidTiming)
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
