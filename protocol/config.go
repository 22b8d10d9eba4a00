package protocol

import (
	"fmt"
	"time"
)

// ConfigError reports an invalid startup parameter. It is never produced by
// the transfer itself.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

type SenderConfig struct {
	WindowSize int
	MSS        int
	Timeout    time.Duration
	// AckBufferBytes caps the advertised receiver window at AckBufferBytes/MSS
	// segments. Zero leaves the window as requested.
	AckBufferBytes int
}

func (config SenderConfig) Validate() error {
	if config.WindowSize <= 0 {
		return &ConfigError{"window size", config.WindowSize, "must be positive"}
	}
	if config.MSS <= 0 {
		return &ConfigError{"MSS", config.MSS, "must be positive"}
	}
	if config.MSS > MaxMSS {
		return &ConfigError{"MSS", config.MSS, fmt.Sprintf("must not exceed %d", MaxMSS)}
	}
	if config.Timeout <= 0 {
		return &ConfigError{"timeout", config.Timeout, "must be positive"}
	}
	if config.AckBufferBytes < 0 {
		return &ConfigError{"ack buffer bytes", config.AckBufferBytes, "must not be negative"}
	}
	return nil
}

// receiverWindow is the window advertised to a Selective-Repeat receiver.
func (config SenderConfig) receiverWindow() int {
	window := config.WindowSize
	if window < 1 {
		window = 1
	}
	if config.AckBufferBytes <= 0 {
		return window
	}
	capacity := config.AckBufferBytes / config.MSS
	if capacity < 1 {
		capacity = 1
	}
	if capacity < window {
		return capacity
	}
	return window
}

type ReceiverConfig struct {
	OutputPath string
	// ScratchDir, when set, stores every session in its own file instead of
	// overwriting OutputPath.
	ScratchDir      string
	LossProbability float64
	// WindowSize is the initial Selective-Repeat receive window.
	WindowSize int
	Seed       int64
}

func validateLossProbability(p float64) error {
	if !(p >= 0 && p < 1) {
		return &ConfigError{"loss probability", p, "must be in [0, 1)"}
	}
	return nil
}

func (config ReceiverConfig) Validate() error {
	if config.OutputPath == "" && config.ScratchDir == "" {
		return &ConfigError{"output", "", "an output path or scratch directory is required"}
	}
	if err := validateLossProbability(config.LossProbability); err != nil {
		return err
	}
	if config.WindowSize <= 0 {
		return &ConfigError{"window size", config.WindowSize, "must be positive"}
	}
	return nil
}
