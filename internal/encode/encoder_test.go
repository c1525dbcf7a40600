package encode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// testImage creates a 256x256 RGBA image with a gradient pattern.
func testImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		format   string
		wantFmt  string
		wantType uint8
		wantExt  string
		wantErr  bool
	}{
		{"jpeg", "jpeg", TileTypeJPEG, ".jpg", false},
		{"jpg", "jpeg", TileTypeJPEG, ".jpg", false},
		{"png", "png", TileTypePNG, ".png", false},
		{".JPG", "jpeg", TileTypeJPEG, ".jpg", false},
		{"image/png", "png", TileTypePNG, ".png", false},
		{"webp", "webp", TileTypeWebP, ".webp", false},
		{"TIFF", "tiff", TileTypeUnknown, ".tif", false},
		{"terrarium", "terrarium", TileTypePNG, ".png", false},
		{"bmp", "", 0, "", true},
		{"exr", "", 0, "", true},
		{"", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			enc, err := NewEncoder(tt.format, 85)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if enc.Format() != tt.wantFmt {
				t.Errorf("Format() = %q, want %q", enc.Format(), tt.wantFmt)
			}
			if enc.PMTileType() != tt.wantType {
				t.Errorf("PMTileType() = %d, want %d", enc.PMTileType(), tt.wantType)
			}
			if enc.FileExtension() != tt.wantExt {
				t.Errorf("FileExtension() = %q, want %q", enc.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestPNGEncoder_RoundTrip(t *testing.T) {
	enc := &PNGEncoder{}
	img := testImage(256)

	data, err := enc.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Encode produced empty data")
	}

	// Verify it's valid PNG.
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}

	// PNG is lossless, pixels must match.
	bounds := decoded.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 256 {
		t.Errorf("decoded size = %dx%d, want 256x256", bounds.Dx(), bounds.Dy())
	}

	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			or, og, ob, oa := img.At(x, y).RGBA()
			dr, dg, db, da := decoded.At(x, y).RGBA()
			if or != dr || og != dg || ob != db || oa != da {
				t.Fatalf("pixel mismatch at (%d,%d): orig=(%d,%d,%d,%d) decoded=(%d,%d,%d,%d)",
					x, y, or>>8, og>>8, ob>>8, oa>>8, dr>>8, dg>>8, db>>8, da>>8)
			}
		}
	}
}

func TestJPEGEncoder_Encode(t *testing.T) {
	enc := &JPEGEncoder{Quality: 85}
	img := testImage(256)

	data, err := enc.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Encode produced empty data")
	}

	// Verify it's valid JPEG.
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 256 {
		t.Errorf("decoded size = %dx%d, want 256x256", bounds.Dx(), bounds.Dy())
	}

	// JPEG is lossy, only require pixels to be close.
	maxDiff := 0
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			or, _, _, _ := img.At(x, y).RGBA()
			dr, _, _, _ := decoded.At(x, y).RGBA()
			diff := int(or>>8) - int(dr>>8)
			if diff < 0 {
				diff = -diff
			}
			if diff > maxDiff {
				maxDiff = diff
			}
		}
	}
	// At quality 85, max diff should be small (JPEG compression artifacts).
	if maxDiff > 30 {
		t.Errorf("JPEG max pixel diff = %d, want <= 30 for quality 85", maxDiff)
	}
}

func TestJPEGEncoder_Format(t *testing.T) {
	enc := &JPEGEncoder{Quality: 90}
	if enc.Format() != "jpeg" {
		t.Errorf("Format() = %q, want \"jpeg\"", enc.Format())
	}
	if enc.PMTileType() != TileTypeJPEG {
		t.Errorf("PMTileType() = %d, want %d", enc.PMTileType(), TileTypeJPEG)
	}
	if enc.FileExtension() != ".jpg" {
		t.Errorf("FileExtension() = %q, want \".jpg\"", enc.FileExtension())
	}
}

func TestPNGEncoder_Format(t *testing.T) {
	enc := &PNGEncoder{}
	if enc.Format() != "png" {
		t.Errorf("Format() = %q, want \"png\"", enc.Format())
	}
	if enc.PMTileType() != TileTypePNG {
		t.Errorf("PMTileType() = %d, want %d", enc.PMTileType(), TileTypePNG)
	}
	if enc.FileExtension() != ".png" {
		t.Errorf("FileExtension() = %q, want \".png\"", enc.FileExtension())
	}
}

func TestPNGEncoder_TransparentImage(t *testing.T) {
	// Ensure PNG preserves transparency.
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 32 {
				img.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 0}) // transparent
			}
		}
	}

	enc := &PNGEncoder{}
	data, err := enc.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}

	// Check opaque pixel.
	r, g, b, a := decoded.At(10, 10).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 || a>>8 != 255 {
		t.Errorf("opaque pixel = (%d,%d,%d,%d), want (255,0,0,255)", r>>8, g>>8, b>>8, a>>8)
	}

	// Check transparent pixel.
	_, _, _, a = decoded.At(50, 10).RGBA()
	if a>>8 != 0 {
		t.Errorf("transparent pixel alpha = %d, want 0", a>>8)
	}
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"PNG":         "png",
		".tif":        "tif",
		"..JPEG":      "jpeg",
		" image/Tiff": "image/tiff",
		"":            "",
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	for _, tok := range []string{"jpg", "jpeg", "image/jpeg", "png", "image/png", "tif", "tiff", "image/tiff"} {
		if _, err := Lookup(tok); err != nil {
			t.Errorf("Lookup(%q): %v", tok, err)
		}
	}
	for _, tok := range []string{"exr", "image/exr", "gif", "jpeg2000"} {
		_, err := Lookup(tok)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Lookup(%q) err = %v, want ErrUnsupportedFormat", tok, err)
		}
	}
	if a, b := mustLookup(t, "jpg"), mustLookup(t, "image/jpeg"); a != b {
		t.Error("jpg and image/jpeg resolve to different codecs")
	}
}

func mustLookup(t *testing.T, tok string) *Codec {
	t.Helper()
	c, err := Lookup(tok)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", tok, err)
	}
	return c
}

func TestAvailableSorted(t *testing.T) {
	got := Available()
	if len(got) == 0 {
		t.Fatal("no codecs registered")
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("Available() not sorted: %q before %q", got[i-1], got[i])
		}
	}
}

func TestDecodeFile(t *testing.T) {
	img := testImage(16)
	data, err := (&PNGEncoder{}).Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tile.PNG")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if decoded.Bounds().Dx() != 16 {
		t.Errorf("decoded width = %d, want 16", decoded.Bounds().Dx())
	}

	_, err = DecodeFile(filepath.Join(t.TempDir(), "scene.exr"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("DecodeFile(.exr) err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTIFFRoundTrip(t *testing.T) {
	img := testImage(32)
	enc, err := NewEncoder("tiff", 0)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	data, err := enc.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeImage(data, "image/tiff")
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	r0, g0, b0, _ := img.At(5, 7).RGBA()
	r1, g1, b1, _ := decoded.At(5, 7).RGBA()
	if r0 != r1 || g0 != g1 || b0 != b1 {
		t.Errorf("pixel (5,7) = (%d,%d,%d), want (%d,%d,%d)", r1>>8, g1>>8, b1>>8, r0>>8, g0>>8, b0>>8)
	}
}

func TestTerrariumElevation(t *testing.T) {
	for _, elev := range []float64{-432.5, 0, 1234.25, 8848} {
		c := ElevationToTerrarium(elev)
		if got := TerrariumToElevation(c); math.Abs(got-elev) > 1.0/256 {
			t.Errorf("elevation %v decoded as %v", elev, got)
		}
	}
	if c := ElevationToTerrarium(math.NaN()); c.A != 0 {
		t.Errorf("NaN elevation alpha = %d, want 0", c.A)
	}
}
