package app

import (
	"fmt"
	"time"

	"watch/hal"
	"watch/internal/config"
	"watch/internal/klog"
	"watch/kernel/irq"
	"watch/kernel/mailbox"
	"watch/kernel/sched"
	"watch/kernel/swtimer"
	"watch/kernel/wdt"
)

// Button names as the board labels them.
const (
	ButtonSet  = "SET"
	ButtonNext = "NEXT"
)

// Watchdog participants of the watch.
const (
	clockName     = "clock"
	heartbeatName = "heartbeat"
)

// beepPeriod is the on/off period of the alarm buzzer.
const beepPeriod = 250 * time.Millisecond

type view uint8

const (
	viewMain view = iota
	viewAlarm
)

// watch is the application: clock and temperature screen, daily alarm and
// heartbeat LED. Everything but the button handler runs in task context.
type watch struct {
	log    *klog.Logger
	errlog *klog.Sometimes

	rtc     hal.RTC
	therm   hal.Thermometer
	lcd     hal.CharDisplay
	buzzer  hal.Buzzer
	led     hal.GPIOPin
	ledFB   hal.LED
	buttons hal.Buttons

	s      *sched.Scheduler
	timers *swtimer.Multiplexer
	irqs   *irq.Controller
	wd     *wdt.Tracker

	alarm config.Alarm

	// display
	rows        [2]string
	shown       [2]string
	displayTask sched.TaskID

	// buttons
	actions    []irq.Action
	presses    mailbox.Mailbox[int]
	buttonTask sched.TaskID
	set, next  int

	now      time.Time
	clockOK  bool
	temp     string
	view     view
	ringing  bool
	ringLeft time.Duration
	rungAt   int64
	ledOn    bool

	clockID, tempID, readID, beepID, beatID swtimer.ID
	clockH, beatH                           wdt.Handle
	stalled                                 string
}

type watchDeps struct {
	h      hal.HAL
	log    *klog.Logger
	s      *sched.Scheduler
	timers *swtimer.Multiplexer
	irqs   *irq.Controller
	wd     *wdt.Tracker
	cfg    config.Watch
}

func newWatch(d watchDeps) (*watch, error) {
	w := &watch{
		log:     d.log,
		errlog:  d.log.Sometimes(10*time.Second, 1),
		rtc:     d.h.RTC(),
		therm:   d.h.Thermometer(),
		lcd:     d.h.Display(),
		buzzer:  d.h.Buzzer(),
		ledFB:   d.h.LED(),
		buttons: d.h.Buttons(),
		s:       d.s,
		timers:  d.timers,
		irqs:    d.irqs,
		wd:      d.wd,
		alarm:   d.cfg.Alarm,
		temp:    "--.-C",
		rungAt:  -1,
		set:     -1,
		next:    -1,
	}
	w.led = hal.FindPin(d.h.GPIO(), "LED")
	if w.led != nil {
		if err := w.led.Configure(hal.GPIOModeOutput, hal.GPIOPullNone); err != nil {
			w.log.Warnf("led pin: %v", err)
			w.led = nil
		}
	}

	var err error
	if w.displayTask, err = d.s.AddTask("display", w.refresh, nil); err != nil {
		return nil, fmt.Errorf("display task: %w", err)
	}
	if err := w.setupButtons(); err != nil {
		return nil, err
	}

	if w.clockID, err = d.timers.Register(swtimer.Timer{Callback: w.tickClock, Period: config.ClockPeriod}); err != nil {
		return nil, fmt.Errorf("clock timer: %w", err)
	}
	if w.therm != nil {
		if w.tempID, err = d.timers.Register(swtimer.Timer{Callback: w.requestTemp, Period: d.cfg.TempPeriod}); err != nil {
			return nil, fmt.Errorf("temperature timer: %w", err)
		}
		if w.readID, err = d.timers.Register(swtimer.Timer{Callback: w.readTemp, Period: config.TempConversion}); err != nil {
			return nil, fmt.Errorf("temperature read timer: %w", err)
		}
		w.timers.Stop(w.readID)
	}
	if w.beepID, err = d.timers.Register(swtimer.Timer{Callback: w.beep, Period: beepPeriod}); err != nil {
		return nil, fmt.Errorf("alarm timer: %w", err)
	}
	w.timers.Stop(w.beepID)
	if d.cfg.Heartbeat > 0 {
		if w.beatID, err = d.timers.Register(swtimer.Timer{Callback: w.heartbeat, Period: d.cfg.Heartbeat}); err != nil {
			return nil, fmt.Errorf("heartbeat timer: %w", err)
		}
	}

	if w.wd != nil {
		if w.clockH, err = w.wd.Register(clockName); err != nil {
			return nil, fmt.Errorf("clock watchdog entry: %w", err)
		}
		if w.beatID != 0 {
			if w.beatH, err = w.wd.Register(heartbeatName); err != nil {
				return nil, fmt.Errorf("heartbeat watchdog entry: %w", err)
			}
		}
	}
	return w, nil
}

// participates reports whether name is a watchdog participant of the watch.
func (w *watch) participates(name string) bool {
	switch name {
	case clockName:
		return w.clockH != 0
	case heartbeatName:
		return w.beatH != 0
	}
	return false
}

func (w *watch) report(name string, h wdt.Handle) {
	if h == 0 || w.stalled == name {
		return
	}
	w.wd.Report(h)
}

// stall stops the watchdog reports of name; the watchdog resets the MCU.
func (w *watch) stall(name string) {
	w.stalled = name
	w.log.Warnf("stall: %s stops reporting to the watchdog", name)
}

func (w *watch) setupButtons() error {
	if w.buttons == nil {
		return nil
	}
	var err error
	if w.buttonTask, err = w.s.AddTask("buttons", w.handleButtons, nil); err != nil {
		return fmt.Errorf("buttons task: %w", err)
	}
	n := w.buttons.Count()
	w.actions = make([]irq.Action, n)
	for i := 0; i < n; i++ {
		name := w.buttons.Name(i)
		switch name {
		case ButtonSet:
			w.set = i
		case ButtonNext:
			w.next = i
		}
		w.actions[i] = irq.Action{Handler: w.buttonISR, Line: w.buttons.Line(i), Name: name, Data: i}
		if err := w.irqs.Register(&w.actions[i]); err != nil {
			return fmt.Errorf("button %s: %w", name, err)
		}
	}
	return nil
}

// buttonISR claims the interrupt if its button latched an edge. Both buttons
// share one line, so the other action sees the same interrupt.
func (w *watch) buttonISR(_ irq.Line, data any) irq.Result {
	i := data.(int)
	if !w.buttons.TakePending(i) {
		return irq.None
	}
	w.presses.TrySend(i)
	w.s.MarkReady(w.buttonTask)
	return irq.Handled
}

// handleButtons handles the presses in the order they happened.
func (w *watch) handleButtons(any) {
	for {
		i, ok := w.presses.TryRecv()
		if !ok {
			return
		}
		switch i {
		case w.set:
			w.toggleAlarm()
		case w.next:
			w.nextPressed()
		}
	}
}

func (w *watch) toggleAlarm() {
	w.alarm.Enabled = !w.alarm.Enabled
	if !w.alarm.Enabled && w.ringing {
		w.silence()
	}
	w.log.Infof("alarm %02d:%02d %s", w.alarm.Hour, w.alarm.Minute, onOff(w.alarm.Enabled))
	w.render()
}

func (w *watch) nextPressed() {
	if w.ringing {
		w.silence()
	} else if w.view == viewMain {
		w.view = viewAlarm
	} else {
		w.view = viewMain
	}
	w.render()
}

func (w *watch) tickClock(any) {
	t, err := w.rtc.ReadTime()
	if err != nil {
		w.clockOK = false
		w.errlog.Logf(hal.LogErr, "rtc: %v", err)
	} else {
		w.now, w.clockOK = t, true
		w.checkAlarm(t)
	}
	w.render()
	w.report(clockName, w.clockH)
}

// checkAlarm starts ringing once in the alarm minute.
func (w *watch) checkAlarm(t time.Time) {
	if !w.alarm.Enabled || t.Hour() != w.alarm.Hour || t.Minute() != w.alarm.Minute {
		return
	}
	minute := t.Unix() / 60
	if minute == w.rungAt {
		return
	}
	w.rungAt = minute
	w.ringing = true
	w.ringLeft = w.alarm.Ring
	w.timers.Reset(w.beepID)
	w.timers.Start(w.beepID)
	w.buzzer.On()
	w.log.Noticef("alarm %02d:%02d ringing", w.alarm.Hour, w.alarm.Minute)
}

func (w *watch) beep(any) {
	w.ringLeft -= beepPeriod
	if w.ringLeft <= 0 {
		w.silence()
		w.render()
		return
	}
	if err := w.buzzer.Toggle(); err != nil {
		w.errlog.Logf(hal.LogErr, "buzzer: %v", err)
	}
}

func (w *watch) silence() {
	w.ringing = false
	w.timers.Stop(w.beepID)
	if err := w.buzzer.Off(); err != nil {
		w.errlog.Logf(hal.LogErr, "buzzer: %v", err)
	}
}

// requestTemp starts a conversion; readTemp collects it once the
// conversion time has passed.
func (w *watch) requestTemp(any) {
	w.therm.RequestTemperature()
	w.timers.Reset(w.readID)
	w.timers.Start(w.readID)
}

func (w *watch) readTemp(any) {
	w.timers.Stop(w.readID)
	milliC, err := w.therm.ReadTemperature()
	if err != nil {
		w.temp = "--.-C"
		w.errlog.Logf(hal.LogWarning, "thermometer: %v", err)
	} else {
		w.temp = tempString(milliC)
		w.log.Debugf("temperature %s", w.temp)
	}
	w.render()
}

func (w *watch) heartbeat(any) {
	w.ledOn = !w.ledOn
	if w.led != nil {
		if err := w.led.Write(w.ledOn); err != nil {
			w.errlog.Logf(hal.LogWarning, "led: %v", err)
		}
	} else if w.ledFB != nil {
		if w.ledOn {
			w.ledFB.High()
		} else {
			w.ledFB.Low()
		}
	}
	w.report(heartbeatName, w.beatH)
}

// render composes both rows and wakes the display task if they changed.
func (w *watch) render() {
	var top, bottom string
	if w.clockOK {
		top = clockLine(w.now, w.temp, w.alarm.Enabled)
		bottom = dateLine(w.now)
	} else {
		top = "--:--:-- " + fmt.Sprintf("%6s", w.temp)
		if w.alarm.Enabled {
			top += "*"
		}
		bottom = "RTC error"
	}
	switch {
	case w.ringing:
		bottom = "ALARM! NEXT=stop"
	case w.view == viewAlarm:
		bottom = alarmLine(w.alarm.Hour, w.alarm.Minute, w.alarm.Enabled)
	}
	w.setRows(fitLine(top), fitLine(bottom))
}

func (w *watch) setRows(top, bottom string) {
	if w.rows[0] == top && w.rows[1] == bottom {
		return
	}
	w.rows[0], w.rows[1] = top, bottom
	w.s.MarkReady(w.displayTask)
}

// refresh is the display task: it writes the rows that differ from what the
// LCD shows.
func (w *watch) refresh(any) {
	if w.lcd == nil {
		return
	}
	changed := false
	for row := range w.rows {
		if w.rows[row] == w.shown[row] {
			continue
		}
		w.lcd.SetCursor(0, uint8(row))
		if _, err := w.lcd.Write([]byte(w.rows[row])); err != nil {
			w.errlog.Logf(hal.LogErr, "lcd: %v", err)
			return
		}
		w.shown[row] = w.rows[row]
		changed = true
	}
	if changed {
		if err := w.lcd.Display(); err != nil {
			w.errlog.Logf(hal.LogErr, "lcd: %v", err)
		}
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
