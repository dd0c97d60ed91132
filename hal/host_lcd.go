//go:build !tinygo

package hal

import (
	"image/color"
	"strings"
	"sync"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	lcdCols = 16
	lcdRows = 2

	// Pixel geometry of the rendered panel.
	lcdCellW    = 8
	lcdCellH    = 14
	lcdMargin   = 6
	lcdPanelW   = lcdCols*lcdCellW + 2*lcdMargin
	lcdPanelH   = lcdRows*lcdCellH + 2*lcdMargin
	lcdBaseline = 11
)

var (
	lcdBackground = color.RGBA{R: 0x9C, G: 0xC4, B: 0x3C, A: 0xFF}
	lcdInk        = color.RGBA{R: 0x10, G: 0x20, B: 0x10, A: 0xFF}
)

// hostLCD is a 16x2 HD44780 look-alike. Writes land in DDRAM; Display
// publishes DDRAM to the panel and, when echo is set, to the logger.
type hostLCD struct {
	mu     sync.Mutex
	ddram  [lcdRows][lcdCols]byte
	shown  [lcdRows]string
	x, y   uint8
	panel  *lcdPanel
	logger Logger
	echo   bool
}

func newHostLCD(logger Logger, echo bool) *hostLCD {
	l := &hostLCD{panel: newLCDPanel(lcdPanelW, lcdPanelH), logger: logger, echo: echo}
	l.clearLocked()
	l.panel.fill(lcdBackground)
	return l
}

func (l *hostLCD) Size() (w, h int16) { return lcdCols, lcdRows }

func (l *hostLCD) SetCursor(x, y uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.x, l.y = x, y
}

func (l *hostLCD) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, b := range data {
		if l.y >= lcdRows {
			break
		}
		if l.x >= lcdCols {
			l.x = 0
			l.y++
			if l.y >= lcdRows {
				break
			}
		}
		l.ddram[l.y][l.x] = b
		l.x++
		n++
	}
	return n, nil
}

func (l *hostLCD) ClearDisplay() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
}

func (l *hostLCD) clearLocked() {
	for y := range l.ddram {
		for x := range l.ddram[y] {
			l.ddram[y][x] = ' '
		}
	}
	l.x, l.y = 0, 0
}

func (l *hostLCD) Display() error {
	l.mu.Lock()
	var lines [lcdRows]string
	changed := false
	for y := range l.ddram {
		lines[y] = string(l.ddram[y][:])
		if lines[y] != l.shown[y] {
			changed = true
		}
	}
	l.shown = lines
	l.mu.Unlock()

	if !changed {
		return nil
	}
	l.render(lines)
	if l.echo && l.logger != nil {
		l.logger.WriteLineString("lcd: |" + strings.Join(lines[:], "|") + "|")
	}
	return nil
}

func (l *hostLCD) render(lines [lcdRows]string) {
	l.panel.fill(lcdBackground)
	for y, line := range lines {
		for x, r := range line {
			px := int16(lcdMargin + x*lcdCellW)
			py := int16(lcdMargin + y*lcdCellH + lcdBaseline)
			tinyfont.DrawChar(l.panel, &proggy.TinySZ8pt7b, px, py, r, lcdInk)
		}
	}
}

func (l *hostLCD) lines() [lcdRows]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shown
}
