package models

import "time"

// ConnState is the lifecycle state of one persistent socket.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnStatus is a point-in-time view of a connection handle.
type ConnStatus struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	State     ConnState `json:"state"`
	Attempts  int       `json:"attempts"`
	Exhausted bool      `json:"exhausted"`
	Stopped   bool      `json:"stopped"`
	LastError string    `json:"last_error,omitempty"`
	OpenedAt  time.Time `json:"opened_at,omitempty"`
}

// StreamStats is a point-in-time view of the adaptive stream controller.
type StreamStats struct {
	Quality        int        `json:"quality"`
	FPS            float64    `json:"fps"`
	Status         string     `json:"status"`
	Connection     ConnStatus `json:"connection"`
	Renegotiations int        `json:"renegotiations"`
	FramesReceived uint64     `json:"frames_received"`
	FramesDropped  uint64     `json:"frames_dropped"`
	LastFrameAt    time.Time  `json:"last_frame_at,omitempty"`
}
