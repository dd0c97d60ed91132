package sched

import (
	"fmt"
	"time"
)

type profiler struct {
	now       func() time.Duration
	iterative bool

	busy  [MaxTasks]time.Duration
	idle  time.Duration
	total time.Duration
}

// WithProfiler makes the scheduler account run time per task, idle time and
// total loop time, read back with Stats. now is a monotonic clock. In
// iterative mode every Stats call starts a new measurement window;
// otherwise the figures cover the whole boot.
func WithProfiler(now func() time.Duration, iterative bool) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.prof = &profiler{now: now, iterative: iterative}
		}
	}
}

// TaskStat is the share of one task in a profile.
type TaskStat struct {
	ID      TaskID
	Name    string
	Busy    time.Duration
	Percent int
}

// Stats is a scheduler profile. Sched is whatever the loop spent outside
// tasks and idle: scan overhead plus interrupt handlers.
type Stats struct {
	Total        time.Duration
	Idle         time.Duration
	Sched        time.Duration
	IdlePercent  int
	SchedPercent int
	Tasks        []TaskStat
}

// Lines renders s the way the firmware prints it on the console.
func (st Stats) Lines() []string {
	lines := make([]string, 0, 3+len(st.Tasks))
	lines = append(lines,
		"Scheduler profiler:",
		fmt.Sprintf("sched + IRQs : %d%%", st.SchedPercent),
		fmt.Sprintf("idle : %d%%", st.IdlePercent),
	)
	for _, t := range st.Tasks {
		lines = append(lines, fmt.Sprintf("%s : %d%%", t.Name, t.Percent))
	}
	return lines
}

// Stats returns the current profile, and ok=false when profiling is off or
// nothing has been measured yet. Call it from task context.
func (s *Scheduler) Stats() (st Stats, ok bool) {
	p := s.prof
	if p == nil || p.total <= 0 {
		return Stats{}, false
	}

	st.Total = p.total
	st.Idle = p.idle
	var busy time.Duration
	for i := range s.tasks {
		if s.tasks[i].fn == nil {
			continue
		}
		busy += p.busy[i]
		st.Tasks = append(st.Tasks, TaskStat{
			ID:      TaskID(i + 1),
			Name:    s.tasks[i].name,
			Busy:    p.busy[i],
			Percent: percent(p.busy[i], p.total),
		})
	}
	st.Sched = p.total - busy - p.idle
	if st.Sched < 0 {
		st.Sched = 0
	}
	st.IdlePercent = percent(p.idle, p.total)
	st.SchedPercent = percent(st.Sched, p.total)

	if p.iterative {
		p.busy = [MaxTasks]time.Duration{}
		p.idle = 0
		p.total = 0
	}
	return st, true
}

func percent(part, total time.Duration) int {
	return int(100 * int64(part) / int64(total))
}
