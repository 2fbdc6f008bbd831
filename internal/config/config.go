package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Global represents the global ~/.wppdesk/config.toml.
type Global struct {
	DefaultSession string `toml:"default_session"`
}

// Desk is the per-session configuration read from desk.toml.
type Desk struct {
	LogLevel        string  `toml:"log_level"`
	MediaDir        string  `toml:"media_dir"`
	GreetingMessage string  `toml:"greeting_message"`
	Queues          []Queue `toml:"queues"`
	Router          Router  `toml:"router"`
	Outbox          Outbox  `toml:"outbox"`
	AMQP            AMQP    `toml:"amqp"`
}

// Queue seeds one operator queue. Its ordinal is its position in the list.
type Queue struct {
	Name            string `toml:"name"`
	GreetingMessage string `toml:"greeting_message"`
}

// Router holds the timing knobs of the inbound router.
type Router struct {
	MenuDebounce Duration `toml:"menu_debounce"`
	AckDelay     Duration `toml:"ack_delay"`
}

// Outbox throttles automated replies.
type Outbox struct {
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// AMQP configures the optional notification sink. Empty URL disables it.
type AMQP struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

// Duration is a time.Duration encoded as a Go duration string ("3s", "500ms").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns the desk configuration used when no desk.toml exists.
func Defaults() *Desk {
	return &Desk{
		LogLevel: "info",
		Router: Router{
			MenuDebounce: Duration{3 * time.Second},
			AckDelay:     Duration{500 * time.Millisecond},
		},
		Outbox: Outbox{RatePerSecond: 2, Burst: 5},
		AMQP:   AMQP{Exchange: "wppdesk.events"},
	}
}

// LoadGlobal reads the global config. Returns error if the file is missing.
func LoadGlobal(path string) (*Global, error) {
	var cfg Global
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveGlobal writes the global config, creating parent dirs as needed.
func SaveGlobal(path string, cfg *Global) error {
	return save(path, cfg)
}

// LoadDesk reads a desk config on top of Defaults. A missing file is not an
// error: the defaults are returned as-is.
func LoadDesk(path string) (*Desk, error) {
	cfg := Defaults()
	_, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveDesk writes a desk config.
func SaveDesk(path string, cfg *Desk) error {
	return save(path, cfg)
}

func save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
