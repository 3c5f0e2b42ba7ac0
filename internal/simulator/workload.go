package simulator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Workload is the set of processes a simulation runs.
type Workload struct {
	Processes []ProcessSpec `yaml:"processes"`
}

// ProcessSpec describes one simulated program. Bursts alternate CPU and I/O
// lengths in ticks, starting and ending with a CPU burst.
type ProcessSpec struct {
	Name    string  `yaml:"name"`
	Arrival int64   `yaml:"arrival"`
	Bursts  []int64 `yaml:"bursts"`
}

// CPUTicks returns the total CPU demand of the process.
func (p ProcessSpec) CPUTicks() int64 {
	var n int64
	for i := 0; i < len(p.Bursts); i += 2 {
		n += p.Bursts[i]
	}
	return n
}

// DefaultWorkload returns the built-in process table: a mix of I/O-bound
// (I prefix) and CPU-bound (C prefix) programs.
func DefaultWorkload() *Workload {
	return &Workload{Processes: []ProcessSpec{
		{Name: "Iapache", Arrival: 0, Bursts: []int64{1, 8, 1, 8, 1, 8, 1}},
		{Name: "Ibash", Arrival: 1, Bursts: []int64{2, 6, 1, 6, 2}},
		{Name: "Imozilla", Arrival: 2, Bursts: []int64{1, 5, 2, 5, 1, 5, 1}},
		{Name: "Ccpu", Arrival: 3, Bursts: []int64{12, 2, 10}},
		{Name: "Cgcc", Arrival: 4, Bursts: []int64{8, 3, 9}},
		{Name: "Cspice", Arrival: 5, Bursts: []int64{15}},
		{Name: "Cmysql", Arrival: 6, Bursts: []int64{4, 4, 6, 4, 3}},
		{Name: "Csim", Arrival: 7, Bursts: []int64{11, 1, 2}},
	}}
}

// LoadWorkload reads and validates a YAML workload file.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	return ParseWorkload(data)
}

// ParseWorkload decodes and validates a YAML workload document.
func ParseWorkload(data []byte) (*Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workload: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks that every process is well formed.
func (w *Workload) Validate() error {
	if len(w.Processes) == 0 {
		return fmt.Errorf("workload: no processes")
	}
	seen := make(map[string]bool, len(w.Processes))
	for i, p := range w.Processes {
		if p.Name == "" {
			return fmt.Errorf("workload: process %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("workload: duplicate process name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Arrival < 0 {
			return fmt.Errorf("workload: process %q: arrival must be >= 0", p.Name)
		}
		if len(p.Bursts)%2 == 0 {
			return fmt.Errorf("workload: process %q: bursts must alternate CPU and I/O and end with CPU", p.Name)
		}
		for j, b := range p.Bursts {
			if b < 1 {
				return fmt.Errorf("workload: process %q: burst %d must be >= 1", p.Name, j)
			}
		}
	}
	return nil
}
