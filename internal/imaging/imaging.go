// Package imaging post-processes captured stills into prints: resize to the
// print size, then composite the overlay and mask graphics on top.
package imaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/proc"
)

// Layer is a PNG drawn over the print.
type Layer struct {
	File  string
	X, Y  int     // top left corner on the print
	Scale float64 // size factor, 0 = 1
}

func (l Layer) scale() float64 {
	if l.Scale <= 0 {
		return 1
	}
	return l.Scale
}

// geometry is the gm -geometry argument, empty for an unscaled layer at
// the origin.
func (l Layer) geometry() string {
	s := l.scale()
	if s == 1 && l.X == 0 && l.Y == 0 {
		return ""
	}
	offset := fmt.Sprintf("%+d%+d", l.X, l.Y)
	if s == 1 {
		return offset
	}
	return strconv.FormatFloat(s*100, 'f', -1, 64) + "%" + offset
}

// Compositor turns a raw still into a print.
type Compositor interface {
	// Resize scales the image at path in place to exactly w x h pixels.
	Resize(ctx context.Context, path string, w, h int) error
	// Composite draws the layers over base in order and writes the result
	// to out. Without layers out is a copy of base.
	Composite(ctx context.Context, base, out string, layers []Layer) error
}

// GraphicsMagick shells out to the gm tool.
type GraphicsMagick struct {
	Runner proc.Runner
	Binary string // default "gm"
}

// NewGraphicsMagick returns a compositor running binary through r.
func NewGraphicsMagick(r proc.Runner, binary string) *GraphicsMagick {
	if binary == "" {
		binary = "gm"
	}
	return &GraphicsMagick{Runner: r, Binary: binary}
}

// Resize runs gm mogrify -resize WxH! path. The "!" ignores the aspect ratio.
func (g *GraphicsMagick) Resize(ctx context.Context, path string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("resize: invalid size %dx%d", w, h)
	}
	geometry := strconv.Itoa(w) + "x" + strconv.Itoa(h) + "!"
	debug.Verbose("Imaging: resize %s to %s", path, geometry)
	if _, err := g.Runner.Run(ctx, g.Binary, "mogrify", "-resize", geometry, path); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return nil
}

// Composite runs one gm composite per layer, the first reading base and
// the rest stacking onto out. Without layers it runs gm convert base out.
func (g *GraphicsMagick) Composite(ctx context.Context, base, out string, layers []Layer) error {
	if len(layers) == 0 {
		debug.Verbose("Imaging: no layers, converting %s -> %s", base, out)
		if _, err := g.Runner.Run(ctx, g.Binary, "convert", base, out); err != nil {
			return fmt.Errorf("composite: %w", err)
		}
		return nil
	}
	src := base
	for _, l := range layers {
		args := []string{"composite", "-compose", "Over"}
		if geo := l.geometry(); geo != "" {
			args = append(args, "-geometry", geo)
		}
		args = append(args, l.File, src, out)
		debug.Verbose("Imaging: composite %s", strings.Join(args[1:], " "))
		if _, err := g.Runner.Run(ctx, g.Binary, args...); err != nil {
			return fmt.Errorf("composite %s: %w", l.File, err)
		}
		src = out
	}
	return nil
}
