//go:build !tinygo

package hal

import (
	"strings"
	"testing"
)

type lineLog struct{ lines []string }

func (l *lineLog) WriteLineString(s string) { l.lines = append(l.lines, s) }
func (l *lineLog) WriteLineBytes(b []byte)  { l.lines = append(l.lines, string(b)) }

func TestHostLCDPublishesOnDisplay(t *testing.T) {
	log := &lineLog{}
	lcd := newHostLCD(log, true)

	lcd.SetCursor(0, 0)
	lcd.Write([]byte("07:30:00"))
	lcd.SetCursor(0, 1)
	lcd.Write([]byte("WED 14/10/26"))
	if got := lcd.lines(); got[0] != "" {
		t.Fatalf("shown before Display: %q", got)
	}
	if err := lcd.Display(); err != nil {
		t.Fatalf("Display: %v", err)
	}
	got := lcd.lines()
	if got[0] != "07:30:00        " || got[1] != "WED 14/10/26    " {
		t.Fatalf("lines = %q", got)
	}
	lcd.Display()
	if len(log.lines) != 1 {
		t.Fatalf("echoed %d lines, want 1: %q", len(log.lines), log.lines)
	}
	if want := "lcd: |07:30:00        |WED 14/10/26    |"; log.lines[0] != want {
		t.Fatalf("echo = %q, want %q", log.lines[0], want)
	}
}

func TestHostLCDWrapsAndStops(t *testing.T) {
	lcd := newHostLCD(nil, false)
	n, err := lcd.Write([]byte(strings.Repeat("x", 40)))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != lcdCols*lcdRows {
		t.Fatalf("Write = %d, want %d", n, lcdCols*lcdRows)
	}
	lcd.ClearDisplay()
	lcd.Write([]byte("a"))
	lcd.Display()
	if got := lcd.lines()[0]; got != "a"+strings.Repeat(" ", lcdCols-1) {
		t.Fatalf("after clear = %q", got)
	}
	if w, h := lcd.Size(); w != lcdCols || h != lcdRows {
		t.Fatalf("Size = %d, %d", w, h)
	}
}

func TestHostLCDRendersGlyphs(t *testing.T) {
	lcd := newHostLCD(nil, false)
	if got := lcd.panel.at(0, 0); got != lcdBackground {
		t.Fatalf("blank panel pixel = %v, want background", got)
	}
	lcd.Write([]byte("8"))
	lcd.Display()

	ink := 0
	for y := lcdMargin; y < lcdMargin+lcdCellH; y++ {
		for x := lcdMargin; x < lcdMargin+lcdCellW; x++ {
			if lcd.panel.at(x, y) == lcdInk {
				ink++
			}
		}
	}
	if ink == 0 {
		t.Fatal("no ink in the first cell")
	}
	if got := lcd.panel.at(0, 0); got != lcdBackground {
		t.Fatalf("margin pixel = %v, want background", got)
	}
	pix := lcd.panel.snapshot(nil)
	if len(pix) != lcdPanelW*lcdPanelH*4 {
		t.Fatalf("snapshot = %d bytes", len(pix))
	}
}
