package stress

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Config describes one stress workload.
//
// A config file uses the same keys:
//
//	workers    = 8
//	iterations = 100000
//	casts      = true
//	hold-every = 64
type Config struct {
	// Workers is the number of goroutines sharing the payload.
	Workers int `toml:"workers"`

	// Iterations is the number of clone/release cycles per worker.
	Iterations int `toml:"iterations"`

	// Casts routes every cycle through a static and a dynamic cast instead
	// of a plain clone.
	Casts bool `toml:"casts"`

	// HoldEvery makes a worker keep one clone alive across HoldEvery cycles
	// before dropping it, so references overlap between workers.
	// 0 disables holding.
	HoldEvery int `toml:"hold-every"`

	// OriginTracking enables origin stack capture for the payload.
	OriginTracking bool `toml:"origin-tracking"`
}

// DefaultConfig returns the built-in workload.
func DefaultConfig() Config {
	return Config{
		Workers:    8,
		Iterations: 100000,
		HoldEvery:  64,
	}
}

// LoadConfig reads a TOML workload file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Annotatef(err, "load stress config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("stress config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Validate checks that the workload can run.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Iterations <= 0 {
		return errors.Errorf("iterations must be positive, got %d", c.Iterations)
	}
	if c.HoldEvery < 0 {
		return errors.Errorf("hold-every must not be negative, got %d", c.HoldEvery)
	}
	return nil
}
