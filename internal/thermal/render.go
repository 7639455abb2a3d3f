package thermal

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/golang/freetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	hueCold = 240.0
	hueHot  = 0.0

	paletteSize = 256
	legendPx    = 22
	fontSize    = 13.0
)

// Renderer turns frames into upscaled heat-map PNGs with a min/max legend.
type Renderer struct {
	mu      sync.Mutex
	scale   int
	palette []color.Color
	ctx     *freetype.Context
}

// NewRenderer builds a renderer that scales each pixel to scale x scale.
func NewRenderer(scale int) (*Renderer, error) {
	if scale < 1 {
		return nil, fmt.Errorf("invalid scale %d", scale)
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetSrc(image.White)
	ctx.SetHinting(font.HintingFull)

	palette := make([]color.Color, paletteSize)
	for i := range palette {
		t := float64(i) / float64(paletteSize-1)
		palette[i] = colorful.Hsv(hueCold-t*(hueCold-hueHot), 1, 0.9)
	}

	return &Renderer{scale: scale, palette: palette, ctx: ctx}, nil
}

// Size returns the output image dimensions.
func (r *Renderer) Size() (w, h int) {
	return Width * r.scale, Height*r.scale + legendPx
}

// Render writes f as PNG. Colours are stretched between the frame's own
// coldest and hottest pixel.
func (r *Renderer) Render(w io.Writer, f *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lo, hi := f.Range()
	span := float64(hi - lo)

	src := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			t := 0.0
			if span > 0 {
				t = float64(f.At(x, y)-lo) / span
			}
			idx := min(max(int(math.Round(t*float64(paletteSize-1))), 0), paletteSize-1)
			src.Set(x, y, r.palette[idx])
		}
	}

	width, height := r.Size()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, image.Rect(0, 0, width, height-legendPx), src, src.Bounds(), draw.Src, nil)

	if err := r.annotate(dst, lo, hi); err != nil {
		return fmt.Errorf("annotating frame: %w", err)
	}

	return png.Encode(w, dst)
}

func (r *Renderer) annotate(img *image.RGBA, lo, hi float32) error {
	r.ctx.SetClip(img.Bounds())
	r.ctx.SetDst(img)

	label := fmt.Sprintf("min %.1f°C   max %.1f°C", lo, hi)
	pt := freetype.Pt(4, img.Bounds().Dy()-6)
	_, err := r.ctx.DrawString(label, pt)
	return err
}
