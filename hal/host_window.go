//go:build !tinygo && cgo

package hal

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"watch/internal/buildinfo"
)

const windowScale = 4

var (
	ledOnColor  = color.RGBA{R: 0xE0, G: 0x20, B: 0x20, A: 0xFF}
	ledOffColor = color.RGBA{R: 0x40, G: 0x10, B: 0x10, A: 0xFF}
)

// RunWindow runs prog on the simulated board and opens a desktop window that
// shows the LCD and forwards the s/n keys to the SET/NEXT buttons. It blocks
// until the window closes or the board stops.
func RunWindow(ctx context.Context, prog Program, cfg HostConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := &hostGame{kbd: newHostKeyboard(), done: make(chan struct{})}
	go func() {
		defer close(g.done)
		g.err = runBoard(ctx, newBoard(cfg.Now), prog, cfg, g.h.Store)
	}()

	ebiten.SetWindowTitle("watch (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(lcdPanelW*windowScale, lcdPanelH*windowScale)
	ebiten.SetTPS(30)
	err := ebiten.RunGame(g)
	cancel()
	<-g.done
	if errors.Is(err, ebiten.Termination) {
		err = nil
	}
	if err == nil && !errors.Is(g.err, context.Canceled) {
		err = g.err
	}
	return err
}

type hostGame struct {
	h    atomic.Pointer[hostHAL]
	kbd  *hostKeyboard
	done chan struct{}
	err  error

	pix    []byte
	lcdImg *ebiten.Image
	ledImg *ebiten.Image
}

func (g *hostGame) Update() error {
	select {
	case <-g.done:
		return ebiten.Termination
	default:
	}
	if h := g.h.Load(); h != nil {
		g.kbd.poll(h.buttons)
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	h := g.h.Load()
	if h == nil {
		return
	}
	if g.lcdImg == nil {
		g.lcdImg = ebiten.NewImage(lcdPanelW, lcdPanelH)
		g.ledImg = ebiten.NewImage(3, 3)
	}
	g.pix = h.lcd.panel.snapshot(g.pix)
	g.lcdImg.WritePixels(g.pix)
	screen.DrawImage(g.lcdImg, nil)

	if h.led.isOn() {
		g.ledImg.Fill(ledOnColor)
	} else {
		g.ledImg.Fill(ledOffColor)
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(lcdPanelW-5), 1)
	screen.DrawImage(g.ledImg, op)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return lcdPanelW, lcdPanelH
}
