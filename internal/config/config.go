// Package config loads the server's settings from an optional file and the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Mode              string   `json:"mode"`
	LogLevel          string   `json:"log_level"`
	LogFile           string   `json:"log_file"`
	PendingRequestTTL Duration `json:"pending_request_ttl"`
	MaxContentLength  int      `json:"max_content_length"`
	DiagnosticsDelay  Duration `json:"diagnostics_delay"`
	SemanticTokens    bool     `json:"semantic_tokens"`
	InlayHints        bool     `json:"inlay_hints"`
}

// Default returns the settings used when no file or override is present.
func Default() Config {
	return Config{
		Mode:              "cooperative",
		LogLevel:          "info",
		PendingRequestTTL: Duration(60 * time.Second),
		MaxContentLength:  64 << 20,
		DiagnosticsDelay:  Duration(250 * time.Millisecond),
		SemanticTokens:    true,
		InlayHints:        true,
	}
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
