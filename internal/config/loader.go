package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Recognizer.APIKey == "" {
		errs = append(errs, errors.New("recognizer.api_key is required"))
	}

	if cfg.Telephony.PhoneNumber == "" {
		errs = append(errs, errors.New("telephony.phone_number is required"))
	}
	if cfg.Telephony.FrameBytes < 0 {
		errs = append(errs, fmt.Errorf("telephony.frame_bytes %d must be positive", cfg.Telephony.FrameBytes))
	}

	if cfg.Relay.ChannelBuffer < 0 {
		errs = append(errs, fmt.Errorf("relay.channel_buffer %d must be positive", cfg.Relay.ChannelBuffer))
	}
	codesSeen := make(map[string]int, len(cfg.Relay.GameCodes))
	for i, code := range cfg.Relay.GameCodes {
		if code == "" {
			errs = append(errs, fmt.Errorf("relay.game_codes[%d] is empty", i))
			continue
		}
		if prev, ok := codesSeen[code]; ok {
			errs = append(errs, fmt.Errorf("relay.game_codes[%d] %q is a duplicate of game_codes[%d]", i, code, prev))
		}
		codesSeen[code] = i
	}

	return errors.Join(errs...)
}
