package encode

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

// Decode reads an image of the given type.
func Decode(r io.Reader, typ string) (image.Image, error) {
	c, err := Lookup(typ)
	if err != nil {
		return nil, err
	}
	return c.Decode(r)
}

// DecodeImage decodes image bytes of the given type.
func DecodeImage(data []byte, typ string) (image.Image, error) {
	return Decode(bytes.NewReader(data), typ)
}

// DecodeFile picks the codec from the file extension.
func DecodeFile(path string) (image.Image, error) {
	c, err := Lookup(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := c.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s as %s: %w", path, c.Name, err)
	}
	return img, nil
}
