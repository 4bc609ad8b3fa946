package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// RawImage is an in-memory RGB image with packed 8-bit channels,
// row-major, three bytes per pixel and no padding.
type RawImage struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRawImage validates dimensions against the pixel buffer.
func NewRawImage(width, height int, pix []byte) (*RawImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d for %dx%d RGB", len(pix), width*height*3, width, height)
	}
	return &RawImage{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts any decoded image to packed RGB, dropping alpha.
func FromImage(img image.Image) *RawImage {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)
	for y := range h {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := range w {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return &RawImage{Width: w, Height: h, Pix: pix}
}

// DecodeRawImage decodes JPEG, PNG, GIF, BMP, TIFF or WebP data.
func DecodeRawImage(data []byte) (*RawImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return FromImage(img), nil
}

// ReadRawImage decodes the image file at path.
func ReadRawImage(path string) (*RawImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return DecodeRawImage(data)
}

// ToRGBA normalizes the packed RGB buffer into the channel layout the
// standard encoders expect.
func (r *RawImage) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := range r.Height {
		src := r.Pix[y*r.Width*3 : (y+1)*r.Width*3]
		dst := out.Pix[y*out.Stride : y*out.Stride+r.Width*4]
		for x := range r.Width {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xFF
		}
	}
	return out
}

// EncodeJPEG writes the image as JPEG.
func (r *RawImage) EncodeJPEG(w io.Writer, quality int) error {
	if r == nil || len(r.Pix) == 0 {
		return errors.New("empty image")
	}
	if err := jpeg.Encode(w, r.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// EncodePNG writes the image as lossless PNG.
func (r *RawImage) EncodePNG(w io.Writer) error {
	if r == nil || len(r.Pix) == 0 {
		return errors.New("empty image")
	}
	if err := png.Encode(w, r.ToRGBA()); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// WriteJPEG encodes the image to path, replacing any existing file. The
// image is written to a temporary file next to path and renamed into place,
// so a failed encode never leaves a partial file at path.
func (r *RawImage) WriteJPEG(path string, quality int) error {
	if r == nil || len(r.Pix) == 0 {
		return errors.New("empty image")
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	tmp := f.Name()
	if err := r.EncodeJPEG(f, quality); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
