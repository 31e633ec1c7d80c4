package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/fraxinas/photobooth/internal/debug"
)

// Native processes images in-process with golang.org/x/image.
type Native struct {
	Quality int    // JPEG quality of written files
	Caption string // drawn at the bottom left of the print, empty = none
}

// NewNative returns an in-process compositor.
func NewNative(quality int, caption string) *Native {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Native{Quality: quality, Caption: caption}
}

// Resize scales path to exactly w x h ignoring the aspect ratio.
func (n *Native) Resize(ctx context.Context, path string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("resize: invalid size %dx%d", w, h)
	}
	src, err := decodeFile(path)
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	debug.Verbose("Imaging [native]: resized %s %v -> %dx%d", path, src.Bounds().Size(), w, h)

	if err := n.writeJPEG(path, dst); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return nil
}

// Composite draws the layers over base and writes out as JPEG. The caption
// goes on top of everything.
func (n *Native) Composite(ctx context.Context, base, out string, layers []Layer) error {
	src, err := decodeFile(base)
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, l := range layers {
		if err := drawLayer(canvas, l); err != nil {
			return fmt.Errorf("composite: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if n.Caption != "" {
		drawCaption(canvas, n.Caption)
	}

	if err := n.writeJPEG(out, canvas); err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	debug.Verbose("Imaging [native]: composite %d layers over %s -> %s", len(layers), base, out)
	return nil
}

func drawLayer(canvas *image.RGBA, l Layer) error {
	img, err := decodeFile(l.File)
	if err != nil {
		return fmt.Errorf("layer %s: %w", l.File, err)
	}
	size := img.Bounds().Size()
	s := l.scale()
	w, h := int(float64(size.X)*s+0.5), int(float64(size.Y)*s+0.5)
	r := image.Rect(l.X, l.Y, l.X+w, l.Y+h).Add(canvas.Bounds().Min)
	if s == 1 {
		draw.Draw(canvas, r, img, img.Bounds().Min, draw.Over)
		return nil
	}
	draw.ApproxBiLinear.Scale(canvas, r, img, img.Bounds(), draw.Over, nil)
	return nil
}

func drawCaption(img *image.RGBA, text string) {
	b := img.Bounds()
	face := basicfont.Face7x13
	x := b.Min.X + 10
	y := b.Max.Y - 10

	// Shadow, then text.
	for _, p := range []struct {
		dx, dy int
		col    color.Color
	}{
		{1, 1, color.Black},
		{0, 0, color.White},
	} {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(p.col),
			Face: face,
			Dot:  fixed.Point26_6{X: fixed.Int26_6((x + p.dx) * 64), Y: fixed.Int26_6((y + p.dy) * 64)},
		}
		d.DrawString(text)
	}
}

// writeJPEG writes through a temp file so a failed encode never leaves a
// truncated image behind.
func (n *Native) writeJPEG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".imaging-*.jpg")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: n.Quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data, path)
}

func decode(data []byte, name string) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	if bytes.HasPrefix(data, []byte("\x89PNG")) {
		img, err = png.Decode(bytes.NewReader(data))
	} else {
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// Thumbnail scales the image at path to fit within maxW x maxH, keeping
// the aspect ratio, and returns it JPEG encoded. It is used for the review
// frame shown on the preview stream.
func Thumbnail(path string, maxW, maxH int) ([]byte, error) {
	if maxW <= 0 || maxH <= 0 {
		return nil, fmt.Errorf("thumbnail: invalid size %dx%d", maxW, maxH)
	}
	src, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: %w", err)
	}

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	w, h := fit(sw, sh, maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fit returns the largest size within maxW x maxH with the aspect of w x h.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}
