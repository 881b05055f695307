package api

import (
	"context"
	"sync"
	"time"

	"github.com/chenBenjamin97/robot-scout/pkg/video"
)

//State keeps the latest frame result for the HTTP handlers. It is written by the loop and read by the server.
type State struct {
	mutex     sync.RWMutex
	sessionID string
	startedAt time.Time
	frames    uint64
	latest    *video.FrameResult
}

//Status is the body of GET /api/status
type Status struct {
	SessionID string            `json:"session_id,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Frames    uint64            `json:"frames"`
	Source    video.SourceStats `json:"source"`
	Viewers   int               `json:"viewers"`
}

func NewState(sessionID string) *State {
	return &State{sessionID: sessionID, startedAt: time.Now()}
}

func (s *State) Publish(_ context.Context, result video.FrameResult) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.frames++
	s.latest = &result
	return nil
}

//Latest returns the last published frame result, false if none was published yet
func (s *State) Latest() (video.FrameResult, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.latest == nil {
		return video.FrameResult{}, false
	}
	return *s.latest, true
}

func (s *State) Status() Status {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status := Status{
		SessionID: s.sessionID,
		StartedAt: s.startedAt,
		Frames:    s.frames,
	}
	if s.latest != nil {
		status.Source = s.latest.Source
	}
	return status
}
