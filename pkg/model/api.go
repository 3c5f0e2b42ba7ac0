package model

import "time"

// Response is the standard status API response envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// CPUStatus describes one slot of the assignment table.
type CPUStatus struct {
	CPU     int          `json:"cpu"`
	Idle    bool         `json:"idle"`
	Process *ProcessInfo `json:"process,omitempty"`
}

// ProcessInfo is a point-in-time, serialisable view of a PCB.
type ProcessInfo struct {
	ID            int          `json:"id"`
	Name          string       `json:"name"`
	State         ProcessState `json:"state"`
	TimeRemaining int64        `json:"time_remaining"`
}
