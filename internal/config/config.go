// Package config holds the settings shared by the pyramid commands.
package config

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config selects the tile geometry, pixel type, store and worker settings of
// a pyramid.
type Config struct {
	// TileSize is the edge length of a square tile in pixels.
	TileSize int `default:"256" validate:"pow2,min=16,max=4096"`
	// PixelType names the pixel instantiation, see pixel.ParseKind.
	PixelType string `default:"rgba8" validate:"oneof=graya8 graya16 grayaf32 rgba8"`
	// Concurrency is the number of tile workers. 0 means one per CPU.
	Concurrency int `validate:"min=0"`
	// Preblur low-passes children before decimation.
	Preblur bool `default:"true"`
	// Store is the tile store backend.
	Store string `default:"sqlite" validate:"oneof=sqlite memory"`
	// StorePath is the SQLite database file.
	StorePath string `validate:"required_if=Store sqlite"`
	// CacheMB bounds the tile read cache. 0 derives it from available memory.
	CacheMB int `validate:"min=0"`
	// Format is the codec token used on export.
	Format  string `default:"png" validate:"required"`
	Quality int    `default:"85" validate:"min=1,max=100"`
	Verbose bool
}

// New returns a Config with every default applied.
func New() (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, err
	}
	return c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n > 0 && bits.OnesCount64(uint64(n)) == 1
	})
	return v
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: fails %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Workers resolves Concurrency.
func (c *Config) Workers() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return runtime.NumCPU()
}

// CacheBytes resolves CacheMB, falling back to CacheBudget.
func (c *Config) CacheBytes() int64 {
	if c.CacheMB > 0 {
		return int64(c.CacheMB) << 20
	}
	return CacheBudget(DefaultCacheFraction, nil)
}
