package encode

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned when no codec is registered for a type.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Codec couples a decoder and an encoder factory for one image format.
type Codec struct {
	// Name is the canonical format name, e.g. "jpeg".
	Name string
	// Decode reads one image.
	Decode func(r io.Reader) (image.Image, error)
	// NewEncoder builds an encoder; quality is ignored by lossless formats.
	NewEncoder func(quality int) (Encoder, error)
}

// registry maps cleaned type tokens (extensions and MIME types) to codecs.
// Codec files register themselves from init, guarded by build tags where a
// format is optional.
var registry = map[string]*Codec{}

func register(c *Codec, tokens ...string) {
	for _, tok := range tokens {
		registry[Clean(tok)] = c
	}
}

// Clean normalizes a type token: surrounding whitespace and leading dots are
// stripped and the result is lowercased, so ".TIF", "tif" and " Tif" agree.
func Clean(typ string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(typ), "."))
}

// Lookup returns the codec for a file extension or MIME type.
func Lookup(typ string) (*Codec, error) {
	c, ok := registry[Clean(typ)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, typ)
	}
	return c, nil
}

// Available lists every registered token in sorted order.
func Available() []string {
	out := make([]string, 0, len(registry))
	for tok := range registry {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
