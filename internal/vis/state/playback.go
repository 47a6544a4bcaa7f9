package state

import (
	"math"
	"time"
)

// PlaybackState manages plan playback. Time is measured in plan steps;
// the displayed state is the integer part of CurrentTime.
type PlaybackState struct {
	CurrentTime float64 // Current playback position in steps
	MaxTime     float64 // Plan horizon
	Speed       float64 // Steps per second
	Playing     bool
	lastUpdate  time.Time
}

// NewPlaybackState creates a new playback state.
func NewPlaybackState(maxTime float64) *PlaybackState {
	return &PlaybackState{
		MaxTime:    maxTime,
		Speed:      1.0,
		lastUpdate: time.Now(),
	}
}

// TogglePlay toggles playback on/off.
func (p *PlaybackState) TogglePlay() {
	if p.Playing {
		p.Pause()
		return
	}
	// Restart from the beginning if at end
	if p.CurrentTime >= p.MaxTime {
		p.CurrentTime = 0
	}
	p.Play()
}

// Play starts playback.
func (p *PlaybackState) Play() {
	p.Playing = p.MaxTime > 0
	p.lastUpdate = time.Now()
}

// Pause stops playback.
func (p *PlaybackState) Pause() {
	p.Playing = false
}

// Reset rewinds to the initial state.
func (p *PlaybackState) Reset() {
	p.CurrentTime = 0
	p.Playing = false
}

// Advance advances playback by the time elapsed since the last update.
func (p *PlaybackState) Advance() {
	if !p.Playing {
		return
	}
	now := time.Now()
	p.advanceBy(now.Sub(p.lastUpdate))
	p.lastUpdate = now
}

func (p *PlaybackState) advanceBy(elapsed time.Duration) {
	p.CurrentTime += elapsed.Seconds() * p.Speed
	if p.CurrentTime >= p.MaxTime {
		p.CurrentTime = p.MaxTime
		p.Playing = false
	}
}

// SetTime sets the current playback position, clamped to [0, MaxTime].
func (p *PlaybackState) SetTime(t float64) {
	p.CurrentTime = math.Max(0, math.Min(t, p.MaxTime))
}

// SetStep jumps to the state at step k.
func (p *PlaybackState) SetStep(k int) {
	p.Pause()
	p.SetTime(float64(k))
}

// StepForward moves to the next state.
func (p *PlaybackState) StepForward() {
	p.SetStep(int(math.Floor(p.CurrentTime)) + 1)
}

// StepBack moves to the previous state, or to the start of the current
// one when playback stopped between two states.
func (p *PlaybackState) StepBack() {
	k := math.Floor(p.CurrentTime)
	if k == p.CurrentTime {
		k--
	}
	p.SetStep(int(k))
}

// SetSpeed sets the playback speed in steps per second.
func (p *PlaybackState) SetSpeed(speed float64) {
	p.Speed = math.Max(0.1, math.Min(speed, 10))
}

// Progress returns current progress as 0-1.
func (p *PlaybackState) Progress() float64 {
	if p.MaxTime <= 0 {
		return 0
	}
	return p.CurrentTime / p.MaxTime
}
