package sched

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"watch/hal/haltest"
)

func addTasks(t *testing.T, s *Scheduler, n int, ran *[]TaskID) []TaskID {
	t.Helper()
	ids := make([]TaskID, 0, n)
	for i := 0; i < n; i++ {
		var id TaskID
		id, err := s.AddTask(fmt.Sprintf("task%d", i), func(data any) {
			*ran = append(*ran, *data.(*TaskID))
		}, &id)
		if err != nil {
			t.Fatalf("AddTask(%d) err = %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestAddTaskAssignsSlots(t *testing.T) {
	s := New(&haltest.CPU{})
	var ran []TaskID
	ids := addTasks(t, s, 3, &ran)
	if want := []TaskID{1, 2, 3}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if got := s.Name(2); got != "task1" {
		t.Fatalf("Name(2) = %q, want task1", got)
	}
	if got := s.Ready(); got != 0 {
		t.Fatalf("Ready() = %#x after AddTask, want 0 (blocked)", got)
	}
}

func TestAddTaskErrors(t *testing.T) {
	s := New(&haltest.CPU{})
	fn := func(any) {}

	if _, err := s.AddTask("", fn, nil); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("AddTask(empty) err = %v, want %v", err, ErrEmptyName)
	}
	if _, err := s.AddTask("x", nil, nil); !errors.Is(err, ErrNilFunc) {
		t.Fatalf("AddTask(nil fn) err = %v, want %v", err, ErrNilFunc)
	}
	if _, err := s.AddTask("x", fn, nil); err != nil {
		t.Fatalf("AddTask(x) err = %v", err)
	}
	if _, err := s.AddTask("x", fn, nil); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("AddTask(x) twice err = %v, want %v", err, ErrDuplicateName)
	}
}

func TestTableCapacity(t *testing.T) {
	s := New(&haltest.CPU{})
	var ran []TaskID
	addTasks(t, s, MaxTasks, &ran)

	before := s.tasks
	if _, err := s.AddTask("one-too-many", func(any) {}, nil); !errors.Is(err, ErrTableFull) {
		t.Fatalf("AddTask() on full table err = %v, want %v", err, ErrTableFull)
	}
	for i := range before {
		if before[i].name != s.tasks[i].name {
			t.Fatalf("slot %d changed by failed AddTask: %q -> %q", i, before[i].name, s.tasks[i].name)
		}
	}
}

func TestRemoveTaskReuse(t *testing.T) {
	s := New(&haltest.CPU{})
	fn := func(any) {}

	id, err := s.AddTask("blink", fn, nil)
	if err != nil {
		t.Fatalf("AddTask() err = %v", err)
	}
	if _, err := s.AddTask("other", fn, nil); err != nil {
		t.Fatalf("AddTask(other) err = %v", err)
	}
	s.MarkReady(id)
	if err := s.RemoveTask(id); err != nil {
		t.Fatalf("RemoveTask() err = %v", err)
	}
	if s.Ready()&1 != 0 {
		t.Fatalf("ready bit survived RemoveTask")
	}
	if err := s.RemoveTask(id); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("RemoveTask() twice err = %v, want %v", err, ErrInvalidTask)
	}
	if err := s.RemoveTask(0); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("RemoveTask(0) err = %v, want %v", err, ErrInvalidTask)
	}
	if err := s.RemoveTask(MaxTasks + 1); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("RemoveTask(out of range) err = %v, want %v", err, ErrInvalidTask)
	}

	again, err := s.AddTask("blink", fn, nil)
	if err != nil {
		t.Fatalf("AddTask(blink) again err = %v", err)
	}
	if again != id {
		t.Fatalf("AddTask() reused slot = %d, want %d", again, id)
	}
}

func TestFairness(t *testing.T) {
	cpu := &haltest.CPU{}
	s := New(cpu)
	var ran []TaskID
	ids := addTasks(t, s, 4, &ran)

	for _, id := range ids {
		s.MarkReady(id)
	}
	for i := 0; i < len(ids); i++ {
		if _, ok := s.RunOnce(); !ok {
			t.Fatalf("RunOnce() #%d ran nothing", i)
		}
	}
	// The scan starts after slot 0.
	if want := []TaskID{2, 3, 4, 1}; !reflect.DeepEqual(ran, want) {
		t.Fatalf("run order = %v, want %v", ran, want)
	}
	if cpu.Waits != 0 {
		t.Fatalf("idle waits = %d, want 0", cpu.Waits)
	}

	// Everything ready again: resume just after the last task run.
	ran = ran[:0]
	for _, id := range ids {
		s.MarkReady(id)
	}
	for i := 0; i < len(ids); i++ {
		s.RunOnce()
	}
	if want := []TaskID{2, 3, 4, 1}; !reflect.DeepEqual(ran, want) {
		t.Fatalf("second pass order = %v, want %v", ran, want)
	}
}

func TestContinuouslyReadyTasksAllRun(t *testing.T) {
	s := New(&haltest.CPU{})
	counts := make(map[TaskID]int)
	var ids []TaskID
	for i := 0; i < 5; i++ {
		var id TaskID
		id, err := s.AddTask(fmt.Sprintf("spin%d", i), func(data any) {
			self := *data.(*TaskID)
			counts[self]++
			s.MarkReady(self)
		}, &id)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		s.MarkReady(id)
	}
	for i := 0; i < 5*len(ids); i++ {
		s.RunOnce()
	}
	for _, id := range ids {
		if counts[id] != 5 {
			t.Fatalf("task %d ran %d times, want 5 (counts %v)", id, counts[id], counts)
		}
	}
}

func TestSelfRearmDuringRun(t *testing.T) {
	s := New(&haltest.CPU{})
	runs := 0
	var id TaskID
	id, err := s.AddTask("again", func(any) {
		runs++
		if runs == 1 {
			s.MarkReady(id)
		}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.MarkReady(id)

	if got, ok := s.RunOnce(); !ok || got != id {
		t.Fatalf("RunOnce() = %d, %v, want %d, true", got, ok, id)
	}
	if s.Ready() != 1 {
		t.Fatalf("Ready() = %#x, want re-armed bit", s.Ready())
	}
	if got, ok := s.RunOnce(); !ok || got != id {
		t.Fatalf("second RunOnce() = %d, %v, want %d, true", got, ok, id)
	}
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}

func TestRunOnceClearsBit(t *testing.T) {
	s := New(&haltest.CPU{})
	var ran []TaskID
	ids := addTasks(t, s, 1, &ran)

	s.MarkReady(ids[0])
	s.MarkReady(ids[0])
	if got, ok := s.RunOnce(); !ok || got != ids[0] {
		t.Fatalf("RunOnce() = %d, %v, want %d, true", got, ok, ids[0])
	}
	if s.Ready() != 0 {
		t.Fatalf("Ready() = %#x after run, want 0", s.Ready())
	}
	if len(ran) != 1 {
		t.Fatalf("task ran %d times, want 1", len(ran))
	}
}

func TestIdleWaitsWithInterruptsDisabled(t *testing.T) {
	cpu := &haltest.CPU{}
	s := New(cpu)
	var ran []TaskID
	ids := addTasks(t, s, 1, &ran)

	// An interrupt arriving during the wait marks the task ready; the next
	// pass must pick it up.
	cpu.OnWait = func() {
		if cpu.Depth != 1 {
			t.Errorf("wait at depth %d, want 1", cpu.Depth)
		}
		s.MarkReady(ids[0])
	}
	if _, ok := s.RunOnce(); ok {
		t.Fatalf("RunOnce() on empty ready set ran a task")
	}
	if cpu.Waits != 1 || cpu.Depth != 0 {
		t.Fatalf("waits = %d depth = %d, want 1 and 0", cpu.Waits, cpu.Depth)
	}
	cpu.OnWait = nil
	if got, ok := s.RunOnce(); !ok || got != ids[0] {
		t.Fatalf("RunOnce() = %d, %v, want %d, true", got, ok, ids[0])
	}
}

func TestBusyIdleNeverWaits(t *testing.T) {
	cpu := &haltest.CPU{}
	s := New(cpu, WithBusyIdle())
	for i := 0; i < 3; i++ {
		if _, ok := s.RunOnce(); ok {
			t.Fatalf("RunOnce() on empty ready set ran a task")
		}
	}
	if cpu.Waits != 0 || cpu.Depth != 0 || cpu.Sections != 3 {
		t.Fatalf("waits=%d depth=%d sections=%d, want 0 0 3", cpu.Waits, cpu.Depth, cpu.Sections)
	}
}

func TestStrayReadyBitIsDropped(t *testing.T) {
	cpu := &haltest.CPU{}
	s := New(cpu)
	var ran []TaskID
	ids := addTasks(t, s, 2, &ran)

	s.MarkReady(ids[1])
	if err := s.RemoveTask(ids[1]); err != nil {
		t.Fatal(err)
	}
	// A late wakeup for the freed slot.
	s.MarkReady(ids[1])
	if _, ok := s.RunOnce(); ok {
		t.Fatalf("RunOnce() ran a removed task")
	}
	if s.Ready() != 0 {
		t.Fatalf("Ready() = %#x, want stray bit cleared", s.Ready())
	}
	if len(ran) != 0 {
		t.Fatalf("ran = %v, want nothing", ran)
	}
}

func TestMarkReadyPanicsOnBadID(t *testing.T) {
	s := New(&haltest.CPU{})
	for _, id := range []TaskID{0, MaxTasks + 1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("MarkReady(%d) did not panic", id)
				}
			}()
			s.MarkReady(id)
		}()
	}
}

func TestRunStopsOnContext(t *testing.T) {
	cpu := &haltest.CPU{}
	s := New(cpu)
	ctx, cancel := context.WithCancel(context.Background())

	n := 0
	var id TaskID
	id, err := s.AddTask("count", func(any) {
		n++
		if n == 3 {
			cancel()
			return
		}
		s.MarkReady(id)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.MarkReady(id)
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() err = %v, want %v", err, context.Canceled)
	}
	if n != 3 {
		t.Fatalf("task ran %d times, want 3", n)
	}
}

func TestTaskPanicHaltsScheduler(t *testing.T) {
	cpu := &haltest.CPU{}
	s := New(cpu)

	var got []PanicInfo
	SetPanicHandler(func(info PanicInfo) { got = append(got, info) })
	defer SetPanicHandler(nil)

	bad, err := s.AddTask("bad", func(any) { panic("boom") }, nil)
	if err != nil {
		t.Fatal(err)
	}
	goodRuns := 0
	good, err := s.AddTask("good", func(any) { goodRuns++ }, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.MarkReady(bad)
	s.RunOnce()
	if !s.Halted() {
		t.Fatalf("Halted() = false after task panic")
	}
	if len(got) != 1 || got[0].Name != "bad" || got[0].Task != bad || got[0].Value != "boom" {
		t.Fatalf("panic info = %+v", got)
	}
	if !strings.Contains(string(got[0].Stack), "goroutine") {
		t.Fatalf("panic stack missing")
	}

	s.MarkReady(good)
	if _, ok := s.RunOnce(); ok || goodRuns != 0 {
		t.Fatalf("halted scheduler ran a task")
	}
	if cpu.Waits == 0 {
		t.Fatalf("halted scheduler did not sleep")
	}
}

func TestProfiler(t *testing.T) {
	var clock time.Duration
	now := func() time.Duration { return clock }

	cpu := &haltest.CPU{}
	s := New(cpu, WithProfiler(now, true))
	if _, ok := s.Stats(); ok {
		t.Fatalf("Stats() ok before any measurement")
	}

	work, err := s.AddTask("work", func(any) { clock += 30 * time.Millisecond }, nil)
	if err != nil {
		t.Fatal(err)
	}
	cpu.OnWait = func() { clock += 60 * time.Millisecond }

	s.MarkReady(work)
	s.RunOnce() // 30 ms in the task
	s.RunOnce() // 60 ms idle
	s.MarkReady(work)
	s.RunOnce() // 30 ms in the task

	st, ok := s.Stats()
	if !ok {
		t.Fatalf("Stats() ok = false")
	}
	if st.Total != 120*time.Millisecond {
		t.Fatalf("Total = %v, want 120ms", st.Total)
	}
	if st.IdlePercent != 50 || st.SchedPercent != 0 {
		t.Fatalf("idle %d%% sched %d%%, want 50%% and 0%%", st.IdlePercent, st.SchedPercent)
	}
	if len(st.Tasks) != 1 || st.Tasks[0].Name != "work" || st.Tasks[0].Percent != 50 {
		t.Fatalf("Tasks = %+v", st.Tasks)
	}
	want := []string{"Scheduler profiler:", "sched + IRQs : 0%", "idle : 50%", "work : 50%"}
	if lines := st.Lines(); !reflect.DeepEqual(lines, want) {
		t.Fatalf("Lines() = %q, want %q", lines, want)
	}

	// Iterative mode starts a fresh window.
	if _, ok := s.Stats(); ok {
		t.Fatalf("Stats() ok right after an iterative report")
	}
}
