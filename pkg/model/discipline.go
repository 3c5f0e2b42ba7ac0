package model

import (
	"fmt"
	"strings"
)

// Discipline identifies the ready-queue ordering policy.
type Discipline string

const (
	DisciplineFCFS Discipline = "fcfs"
	DisciplineSJF  Discipline = "sjf"
	DisciplineSRTF Discipline = "srtf"
	DisciplineRR   Discipline = "rr"
)

// String returns the string representation of the discipline.
func (d Discipline) String() string {
	return string(d)
}

// OrdersByRemainingTime reports whether the ready queue is kept sorted by
// remaining time rather than by arrival.
func (d Discipline) OrdersByRemainingTime() bool {
	return d == DisciplineSJF || d == DisciplineSRTF
}

// Preemptive reports whether a running process can be taken off its CPU
// before it blocks or finishes.
func (d Discipline) Preemptive() bool {
	return d == DisciplineSRTF || d == DisciplineRR
}

// Describe returns the human-readable name used in usage and summaries.
func (d Discipline) Describe() string {
	switch d {
	case DisciplineFCFS:
		return "First-Come First-Served"
	case DisciplineSJF:
		return "Shortest Job First"
	case DisciplineSRTF:
		return "Shortest Remaining Time First"
	case DisciplineRR:
		return "Round-Robin"
	}
	return "unknown"
}

// ParseDiscipline converts a name such as "sjf" or "round-robin" to a Discipline.
// An empty string selects FCFS.
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fcfs", "fifo":
		return DisciplineFCFS, nil
	case "sjf", "shortest-job-first":
		return DisciplineSJF, nil
	case "srtf", "shortest-remaining-time-first":
		return DisciplineSRTF, nil
	case "rr", "round-robin":
		return DisciplineRR, nil
	}
	return "", fmt.Errorf("unknown scheduling discipline %q", s)
}
