package carousel

import (
	"errors"
	"time"

	"service-carousel/internal/chunk"
)

// Status is the display state of a service node.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// ServiceNode is one displayable service. Nodes are replaced wholesale when
// the service list is regenerated; they are never edited in place.
type ServiceNode struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Status Status  `json:"status"`
}

// ReplayState is the accumulated view of every service id seen so far.
// AllServiceIDs only grows and keeps first-seen order; Services is always
// derived from it and has the same length.
type ReplayState struct {
	Services      []ServiceNode `json:"services"`
	AllServiceIDs []string      `json:"all_service_ids"`
	Timestamp     time.Time     `json:"timestamp"`
	JobID         string        `json:"job_id"`

	index map[string]struct{}
}

func newReplayState() *ReplayState {
	return &ReplayState{index: make(map[string]struct{})}
}

// Clone returns a deep copy that shares nothing with s.
func (s *ReplayState) Clone() ReplayState {
	out := ReplayState{
		Services:      append([]ServiceNode(nil), s.Services...),
		AllServiceIDs: append([]string(nil), s.AllServiceIDs...),
		Timestamp:     s.Timestamp,
		JobID:         s.JobID,
	}
	if out.Services == nil {
		out.Services = []ServiceNode{}
	}
	if out.AllServiceIDs == nil {
		out.AllServiceIDs = []string{}
	}
	return out
}

// AnimationState is the externally visible part of the rotation scheduler.
type AnimationState struct {
	Running      bool `json:"running"`
	CurrentIndex int  `json:"current_index"`
}

var (
	// ErrDecode is returned when a chunk is not readable columnar data.
	ErrDecode = chunk.ErrDecode

	// ErrNoData is returned when rotation or rendering is requested before any
	// service has been ingested.
	ErrNoData = errors.New("no replay data loaded")

	// ErrRendererUnavailable is returned when drawing is attempted before a
	// renderer has been attached.
	ErrRendererUnavailable = errors.New("renderer not initialised")
)
