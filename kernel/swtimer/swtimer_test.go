package swtimer

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"watch/hal"
	"watch/hal/haltest"
	"watch/kernel/irq"
	"watch/kernel/sched"
	"watch/kernel/wdt"
)

type rig struct {
	ic   *haltest.Interrupts
	tim  *haltest.TickTimer
	s    *sched.Scheduler
	irqs *irq.Controller
	m    *Multiplexer
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cpu := &haltest.CPU{}
	ic := &haltest.Interrupts{}
	r := &rig{
		ic:   ic,
		tim:  &haltest.TickTimer{IC: ic, Line: hal.IRQTickTimer},
		s:    sched.New(cpu),
		irqs: irq.New(cpu, ic),
	}
	m, err := New(r.s, r.irqs, HWTimer{Timer: r.tim, Line: hal.IRQTickTimer, Prescaler: 5, Reload: 59999})
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	r.m = m
	return r
}

// tick delivers n timer overflows, then lets the scheduler drain.
func (r *rig) tick(n int) {
	r.tim.Tick(n)
	r.drain()
}

func (r *rig) drain() {
	for r.s.Ready() != 0 {
		r.s.RunOnce()
	}
}

func (r *rig) register(t *testing.T, period time.Duration, cb Callback) ID {
	t.Helper()
	id, err := r.m.Register(Timer{Callback: cb, Period: period})
	if err != nil {
		t.Fatalf("Register(%v) err = %v", period, err)
	}
	return id
}

func TestNewProgramsHardware(t *testing.T) {
	r := newRig(t)
	if !r.tim.Running || r.tim.Resets != 1 {
		t.Fatalf("timer running=%v resets=%d, want true 1", r.tim.Running, r.tim.Resets)
	}
	if r.tim.Prescaler != 5 || r.tim.Reload != 59999 {
		t.Fatalf("timer psc=%d arr=%d, want 5 59999", r.tim.Prescaler, r.tim.Reload)
	}
	if !r.ic.Enabled(hal.IRQTickTimer) {
		t.Fatalf("tick line not armed")
	}
	if got := r.s.Name(1); got != TaskName {
		t.Fatalf("task = %q, want %q", got, TaskName)
	}
	if got := r.irqs.Actions(hal.IRQTickTimer); !reflect.DeepEqual(got, []string{TaskName}) {
		t.Fatalf("Actions() = %v", got)
	}
}

func TestNewRequiresParts(t *testing.T) {
	if _, err := New(nil, nil, HWTimer{}); err == nil {
		t.Fatalf("New(nil...) err = nil")
	}
	cpu := &haltest.CPU{}
	ic := &haltest.Interrupts{}
	tim := &haltest.TickTimer{IC: ic}
	_, err := New(sched.New(cpu), irq.New(cpu, ic), HWTimer{Timer: tim, Prescaler: 1 << 20})
	if err == nil {
		t.Fatalf("New() with out of range prescaler err = nil")
	}
}

func TestTimerRearm(t *testing.T) {
	groupings := [][]int{
		{4, 16},
		{20},
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		{7, 6, 7},
	}
	for _, groups := range groupings {
		r := newRig(t)
		fires := 0
		var id ID
		id = r.register(t, 100*time.Millisecond, func(any) {
			fires++
			if rem, _ := r.m.Remaining(id); rem != 100*time.Millisecond {
				t.Errorf("%v: Remaining() in callback = %v, want 100ms", groups, rem)
			}
		})
		for _, n := range groups {
			r.tick(n)
		}
		if fires != 1 {
			t.Fatalf("%v: fires = %d, want 1", groups, fires)
		}
		if rem, err := r.m.Remaining(id); err != nil || rem != 100*time.Millisecond {
			t.Fatalf("%v: Remaining() = %v, %v, want 100ms", groups, rem, err)
		}
	}
}

func TestTimerIndependence(t *testing.T) {
	r := newRig(t)
	var log []string
	r.register(t, 10*time.Millisecond, func(any) { log = append(log, "ten") })
	r.register(t, 15*time.Millisecond, func(any) { log = append(log, "fifteen") })

	for i := 0; i < 6; i++ {
		r.tick(1)
	}
	want := []string{"ten", "fifteen", "ten", "ten", "fifteen"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("fire log = %v, want %v", log, want)
	}
}

func TestCallbackData(t *testing.T) {
	r := newRig(t)
	type state struct{ n int }
	st := &state{}
	if _, err := r.m.Register(Timer{Callback: func(d any) { d.(*state).n++ }, Data: st, Period: Granularity}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		r.tick(1)
	}
	if st.n != 3 {
		t.Fatalf("n = %d, want 3", st.n)
	}
}

// Ticks that pile up before the task runs are processed as one elapsed
// batch: a timer fires at most once per pass and restarts a full period.
func TestBatchedTicksFireOnce(t *testing.T) {
	r := newRig(t)
	fires := 0
	id := r.register(t, 10*time.Millisecond, func(any) { fires++ })

	r.tick(7)
	if fires != 1 {
		t.Fatalf("fires = %d after a 35ms batch, want 1", fires)
	}
	if rem, err := r.m.Remaining(id); err != nil || rem != 10*time.Millisecond {
		t.Fatalf("Remaining() = %v, %v, want 10ms", rem, err)
	}

	r.tick(1)
	if fires != 1 {
		t.Fatalf("fires = %d after one more tick, want 1", fires)
	}
	r.tick(1)
	if fires != 2 {
		t.Fatalf("fires = %d after a full period, want 2", fires)
	}
}

func TestSpuriousInterruptIgnored(t *testing.T) {
	r := newRig(t)
	fires := 0
	r.register(t, Granularity, func(any) { fires++ })

	r.tim.Capture()
	r.drain()
	if fires != 0 || r.m.Pending() != 0 {
		t.Fatalf("capture event advanced time: fires=%d pending=%d", fires, r.m.Pending())
	}
	if got := r.irqs.Unhandled(hal.IRQTickTimer); got != 1 {
		t.Fatalf("Unhandled() = %d, want 1", got)
	}
}

func TestStopStartKeepsRemaining(t *testing.T) {
	r := newRig(t)
	fires := 0
	id := r.register(t, 50*time.Millisecond, func(any) { fires++ })

	r.tick(4)
	if err := r.m.Stop(id); err != nil {
		t.Fatalf("Stop() err = %v", err)
	}
	r.tick(20)
	if rem, _ := r.m.Remaining(id); rem != 30*time.Millisecond || fires != 0 {
		t.Fatalf("stopped timer: remaining=%v fires=%d, want 30ms 0", rem, fires)
	}
	if active, _ := r.m.Active(id); active {
		t.Fatalf("Active() = true after Stop")
	}
	if err := r.m.Start(id); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	r.tick(5)
	if fires != 0 {
		t.Fatalf("fired early after Start")
	}
	r.tick(1)
	if fires != 1 {
		t.Fatalf("fires = %d after remaining time elapsed, want 1", fires)
	}
}

func TestResetAndSetPeriod(t *testing.T) {
	r := newRig(t)
	id := r.register(t, 100*time.Millisecond, func(any) {})

	r.tick(10)
	if err := r.m.Reset(id); err != nil {
		t.Fatalf("Reset() err = %v", err)
	}
	if rem, _ := r.m.Remaining(id); rem != 100*time.Millisecond {
		t.Fatalf("Remaining() after Reset = %v, want 100ms", rem)
	}

	if err := r.m.SetPeriod(id, 40*time.Millisecond); err != nil {
		t.Fatalf("SetPeriod() err = %v", err)
	}
	if rem, _ := r.m.Remaining(id); rem != 40*time.Millisecond {
		t.Fatalf("Remaining() after shorter period = %v, want clamped 40ms", rem)
	}
	if err := r.m.SetPeriod(id, 200*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if rem, _ := r.m.Remaining(id); rem != 40*time.Millisecond {
		t.Fatalf("Remaining() after longer period = %v, want 40ms", rem)
	}
	if err := r.m.SetPeriod(id, time.Millisecond); !errors.Is(err, ErrPeriodTooShort) {
		t.Fatalf("SetPeriod(1ms) err = %v, want %v", err, ErrPeriodTooShort)
	}
	r.tick(8)
	if rem, _ := r.m.Remaining(id); rem != 200*time.Millisecond {
		t.Fatalf("Remaining() after firing = %v, want new period 200ms", rem)
	}
}

func TestRegisterErrors(t *testing.T) {
	r := newRig(t)
	if _, err := r.m.Register(Timer{Period: time.Second}); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("Register(nil cb) err = %v, want %v", err, ErrNilCallback)
	}
	if _, err := r.m.Register(Timer{Callback: func(any) {}, Period: 4 * time.Millisecond}); !errors.Is(err, ErrPeriodTooShort) {
		t.Fatalf("Register(4ms) err = %v, want %v", err, ErrPeriodTooShort)
	}
}

func TestCapacity(t *testing.T) {
	r := newRig(t)
	fires := 0
	for i := 0; i < MaxTimers; i++ {
		r.register(t, Granularity, func(any) { fires++ })
	}
	if _, err := r.m.Register(Timer{Callback: func(any) {}, Period: Granularity}); !errors.Is(err, ErrTableFull) {
		t.Fatalf("Register() on full table err = %v, want %v", err, ErrTableFull)
	}
	if r.m.Len() != MaxTimers {
		t.Fatalf("Len() = %d, want %d", r.m.Len(), MaxTimers)
	}
	r.tick(1)
	if fires != MaxTimers {
		t.Fatalf("fires = %d, want %d", fires, MaxTimers)
	}
}

func TestIDsAreMonotonicAndStaleIDsRejected(t *testing.T) {
	r := newRig(t)
	noop := func(any) {}
	a := r.register(t, time.Second, noop)
	b := r.register(t, time.Second, noop)
	if a != 1 || b != 2 {
		t.Fatalf("ids = %d %d, want 1 2", a, b)
	}
	if err := r.m.Unregister(a); err != nil {
		t.Fatalf("Unregister() err = %v", err)
	}
	c := r.register(t, time.Second, noop)
	if c <= b {
		t.Fatalf("id %d reused or went backwards (last %d)", c, b)
	}
	if (c-1)%MaxTimers != (a-1)%MaxTimers {
		t.Fatalf("id %d does not map onto the freed slot", c)
	}

	for _, op := range []func(ID) error{r.m.Unregister, r.m.Start, r.m.Stop, r.m.Reset} {
		if err := op(a); !errors.Is(err, ErrUnknownTimer) {
			t.Fatalf("op(stale id) err = %v, want %v", err, ErrUnknownTimer)
		}
	}
	if err := r.m.SetPeriod(a, time.Second); !errors.Is(err, ErrUnknownTimer) {
		t.Fatalf("SetPeriod(stale) err = %v", err)
	}
	if _, err := r.m.Remaining(0); !errors.Is(err, ErrUnknownTimer) {
		t.Fatalf("Remaining(0) err = %v", err)
	}
	if r.m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.m.Len())
	}
}

func TestCallbackMayUnregister(t *testing.T) {
	r := newRig(t)
	var log []string
	var b ID
	a := r.register(t, 10*time.Millisecond, func(any) {
		log = append(log, "a")
		r.m.Unregister(b)
	})
	b = r.register(t, 10*time.Millisecond, func(any) { log = append(log, "b") })
	r.tick(2)
	if !reflect.DeepEqual(log, []string{"a"}) {
		t.Fatalf("log = %v, want [a]", log)
	}

	// Unregistering itself is fine too.
	log = nil
	c := r.register(t, 10*time.Millisecond, func(any) {})
	r.m.Unregister(a)
	r.tick(2)
	if len(log) != 0 || r.m.Len() != 1 {
		t.Fatalf("log = %v len = %d", log, r.m.Len())
	}
	if _, err := r.m.Remaining(c); err != nil {
		t.Fatal(err)
	}
}

func TestResetTicks(t *testing.T) {
	r := newRig(t)
	id := r.register(t, 100*time.Millisecond, func(any) {})
	r.tim.Tick(5)
	if r.m.Pending() != 5 {
		t.Fatalf("Pending() = %d, want 5", r.m.Pending())
	}
	r.m.ResetTicks()
	r.drain()
	if rem, _ := r.m.Remaining(id); rem != 100*time.Millisecond {
		t.Fatalf("Remaining() = %v, want untouched 100ms", rem)
	}
}

func TestReportsToWatchdog(t *testing.T) {
	r := newRig(t)
	hw := &haltest.Watchdog{}
	tr, err := wdt.New(r.s, hw, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.m.AttachWatchdog(tr); err != nil {
		t.Fatalf("AttachWatchdog() err = %v", err)
	}
	if err := r.m.AttachWatchdog(tr); err == nil {
		t.Fatalf("AttachWatchdog() twice err = nil")
	}
	r.tick(1)
	if hw.Kicks != 1 {
		t.Fatalf("kicks = %d, want 1", hw.Kicks)
	}
	r.tick(3)
	if hw.Kicks != 2 {
		t.Fatalf("kicks = %d after one batched pass, want 2", hw.Kicks)
	}
}

func TestClose(t *testing.T) {
	r := newRig(t)
	tr, err := wdt.New(r.s, &haltest.Watchdog{}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.m.AttachWatchdog(tr); err != nil {
		t.Fatal(err)
	}
	fires := 0
	id := r.register(t, Granularity, func(any) { fires++ })

	if err := r.m.Close(); err != nil {
		t.Fatalf("Close() err = %v", err)
	}
	if r.tim.Running || r.ic.Enabled(hal.IRQTickTimer) {
		t.Fatalf("after Close: running=%v armed=%v", r.tim.Running, r.ic.Enabled(hal.IRQTickTimer))
	}
	if r.s.Name(1) != "" {
		t.Fatalf("swtimer task still present")
	}
	if tr.Pending() != nil {
		t.Fatalf("watchdog entry still registered: %v", tr.Pending())
	}
	r.tim.Start()
	r.tick(3)
	if fires != 0 {
		t.Fatalf("fires = %d after Close, want 0", fires)
	}
	if err := r.m.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Close() twice err = %v, want %v", err, ErrClosed)
	}
	if _, err := r.m.Register(Timer{Callback: func(any) {}, Period: Granularity}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Register() after Close err = %v, want %v", err, ErrClosed)
	}
	if err := r.m.Stop(id); err != nil {
		t.Fatalf("Stop() after Close err = %v", err)
	}
	if err := r.m.Start(id); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start() after Close err = %v, want %v", err, ErrClosed)
	}
	if err := r.m.SetPeriod(id, 10*time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetPeriod() after Close err = %v, want %v", err, ErrClosed)
	}
}

func TestParams(t *testing.T) {
	psc, arr, err := Params(72_000_000, Granularity)
	if err != nil {
		t.Fatalf("Params() err = %v", err)
	}
	if psc != 5 || arr != 59999 {
		t.Fatalf("Params() = %d, %d, want 5, 59999", psc, arr)
	}
	if got := Period(72_000_000, psc, arr); got != Granularity {
		t.Fatalf("Period() = %v, want %v", got, Granularity)
	}

	psc, arr, err = Params(8_000_000, time.Millisecond)
	if err != nil || psc != 0 || arr != 7999 {
		t.Fatalf("Params(8MHz, 1ms) = %d, %d, %v, want 0, 7999", psc, arr, err)
	}

	for _, tc := range []struct {
		hz   uint32
		tick time.Duration
	}{
		{0, Granularity},
		{72_000_000, 0},
		{7, Granularity},
		{72_000_000, time.Minute},
	} {
		if _, _, err := Params(tc.hz, tc.tick); !errors.Is(err, ErrTickUnreachable) {
			t.Fatalf("Params(%d, %v) err = %v, want %v", tc.hz, tc.tick, err, ErrTickUnreachable)
		}
	}
}
