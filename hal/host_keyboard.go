//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// hostKeyboard maps window keys onto the board buttons.
type hostKeyboard struct {
	keys map[ebiten.Key]string
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{keys: map[ebiten.Key]string{
		ebiten.KeyS:     "SET",
		ebiten.KeyEnter: "SET",
		ebiten.KeyN:     "NEXT",
		ebiten.KeySpace: "NEXT",
	}}
}

func (k *hostKeyboard) poll(b *hostButtons) {
	for key, name := range k.keys {
		if inpututil.IsKeyJustPressed(key) {
			b.press(name)
		}
	}
}
