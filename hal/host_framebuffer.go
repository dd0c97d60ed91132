//go:build !tinygo

package hal

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// lcdPanel is the pixel image of the simulated LCD. It implements
// drivers.Displayer so tinyfont can draw the character cells into it, and
// the window copies it out once per frame.
type lcdPanel struct {
	mu  sync.Mutex
	img *image.RGBA
}

func newLCDPanel(width, height int) *lcdPanel {
	return &lcdPanel{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (p *lcdPanel) Size() (x, y int16) {
	b := p.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (p *lcdPanel) SetPixel(x, y int16, c color.RGBA) {
	p.mu.Lock()
	p.img.SetRGBA(int(x), int(y), c)
	p.mu.Unlock()
}

func (p *lcdPanel) Display() error { return nil }

func (p *lcdPanel) fill(c color.RGBA) {
	p.mu.Lock()
	defer p.mu.Unlock()
	draw.Draw(p.img, p.img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// snapshot copies the RGBA pixels into dst, growing it as needed.
func (p *lcdPanel) snapshot(dst []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cap(dst) < len(p.img.Pix) {
		dst = make([]byte, len(p.img.Pix))
	}
	dst = dst[:len(p.img.Pix)]
	copy(dst, p.img.Pix)
	return dst
}

func (p *lcdPanel) at(x, y int) color.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.img.RGBAAt(x, y)
}
