package simulator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/me/ossim/pkg/model"
)

// ProcessStats summarises one process after a run. Times are in ticks.
type ProcessStats struct {
	ID         int                `json:"id"`
	Name       string             `json:"name"`
	State      model.ProcessState `json:"state"`
	Arrival    int64              `json:"arrival"`
	Finished   int64              `json:"finished"`
	Turnaround int64              `json:"turnaround"`
	Waiting    int64              `json:"waiting"`
	CPUTicks   int64              `json:"cpu_ticks"`
}

// Stats summarises a simulation run.
type Stats struct {
	RunID           string           `json:"run_id"`
	Discipline      model.Discipline `json:"discipline"`
	CPUs            int              `json:"cpus"`
	TimeSlice       int              `json:"time_slice"`
	ContextSwitches int64            `json:"context_switches"`
	TotalTicks      int64            `json:"total_ticks"`
	ReadyTicks      int64            `json:"ready_ticks"`
	Elapsed         time.Duration    `json:"elapsed"`
	Processes       []ProcessStats   `json:"processes"`
}

func (s *Simulator) stats(elapsed time.Duration) *Stats {
	cfg := s.sched.Config()
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.now
	if s.terminated == len(s.procs) {
		total = s.endTick
	}
	st := &Stats{
		RunID:           s.runID,
		Discipline:      cfg.Discipline,
		CPUs:            cfg.CPUCount,
		TimeSlice:       cfg.TimeSlice,
		ContextSwitches: s.switches.Load(),
		TotalTicks:      total,
		ReadyTicks:      s.readyTicks,
		Elapsed:         elapsed,
	}
	for _, proc := range s.procs {
		ps := ProcessStats{
			ID:       proc.pcb.ID,
			Name:     proc.spec.Name,
			State:    proc.pcb.State(),
			Arrival:  proc.spec.Arrival,
			Waiting:  proc.readyTicks,
			CPUTicks: proc.spec.CPUTicks(),
		}
		if ps.State == model.ProcessStateTerminated {
			ps.Finished = proc.finishedAt
			ps.Turnaround = proc.finishedAt - proc.spec.Arrival
		}
		st.Processes = append(st.Processes, ps)
	}
	return st
}

// Terminated returns the number of processes that ran to completion.
func (st *Stats) Terminated() int {
	n := 0
	for _, p := range st.Processes {
		if p.State == model.ProcessStateTerminated {
			n++
		}
	}
	return n
}

// PrintSummary writes a human-readable run summary to w.
func PrintSummary(w io.Writer, st *Stats) {
	if st == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Simulation Summary ===")
	if st.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", st.RunID)
	}
	sched := st.Discipline.Describe()
	if st.TimeSlice > 0 {
		sched = fmt.Sprintf("%s (time slice %d)", sched, st.TimeSlice)
	}
	fmt.Fprintf(w, "Scheduler: %s on %d CPU(s)\n", sched, st.CPUs)
	fmt.Fprintf(w, "# of Context Switches: %d\n", st.ContextSwitches)
	fmt.Fprintf(w, "Total execution time: %d ticks\n", st.TotalTicks)
	fmt.Fprintf(w, "Total time spent in READY state: %d ticks\n", st.ReadyTicks)
	fmt.Fprintf(w, "Wall clock: %s\n", formatDuration(st.Elapsed))
	fmt.Fprintln(w)

	if len(st.Processes) == 0 {
		return
	}
	nameLen := 7 // "Process"
	for _, p := range st.Processes {
		if len(p.Name) > nameLen {
			nameLen = len(p.Name)
		}
	}
	fmt.Fprintf(w, "%-*s  %7s  %6s  %10s  %7s  %s\n", nameLen, "Process", "Arrival", "CPU", "Turnaround", "Waiting", "State")
	fmt.Fprintln(w, strings.Repeat("-", nameLen+52))
	for _, p := range st.Processes {
		turnaround := "-"
		if p.State == model.ProcessStateTerminated {
			turnaround = fmt.Sprintf("%d", p.Turnaround)
		}
		fmt.Fprintf(w, "%-*s  %7d  %6d  %10s  %7d  %s\n", nameLen, p.Name, p.Arrival, p.CPUTicks, turnaround, p.Waiting, p.State)
	}
}

// formatDuration formats a duration for human display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}
