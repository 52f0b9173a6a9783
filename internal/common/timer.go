// Package common provides timing and runtime statistics shared by the
// pipeline and the server.
package common

import (
	"fmt"
	"time"
)

// Timer measures a single span with an optional name.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return fmt.Sprintf("%v", t.duration)
}

// Stage is one named step measured by a StageTimer.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// StageTimer splits a run into consecutive named stages: each Mark closes
// the stage that started at the previous Mark.
type StageTimer struct {
	start  time.Time
	last   time.Time
	stages []Stage
}

// NewStageTimer starts timing the first stage.
func NewStageTimer() *StageTimer {
	now := time.Now()
	return &StageTimer{start: now, last: now}
}

// Mark ends the current stage under name and returns its duration.
func (s *StageTimer) Mark(name string) time.Duration {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	s.stages = append(s.stages, Stage{Name: name, Duration: d})
	return d
}

// Stages returns the recorded stages in order.
func (s *StageTimer) Stages() []Stage {
	return append([]Stage(nil), s.stages...)
}

// Total is the time since the timer was created.
func (s *StageTimer) Total() time.Duration {
	return s.last.Sub(s.start)
}

// Millis returns stage durations in milliseconds keyed by name, plus
// "total". Repeated names accumulate.
func (s *StageTimer) Millis() map[string]float64 {
	out := make(map[string]float64, len(s.stages)+1)
	for _, st := range s.stages {
		out[st.Name] += float64(st.Duration) / float64(time.Millisecond)
	}
	out["total"] = float64(s.Total()) / float64(time.Millisecond)
	return out
}
