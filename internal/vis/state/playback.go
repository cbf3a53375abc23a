package state

import (
	"math"
	"time"
)

const (
	DefaultSpeed = 4.0 // timesteps per second
	minSpeed     = 0.5
	maxSpeed     = 64
)

// PlaybackState is the replay clock, measured in timesteps.
type PlaybackState struct {
	CurrentTime float64
	MaxTime     float64 // final timestep
	Speed       float64 // timesteps per second
	Playing     bool
	lastUpdate  time.Time
	now         func() time.Time
}

// NewPlaybackState creates a paused clock at timestep 0.
func NewPlaybackState(maxTime float64) *PlaybackState {
	return &PlaybackState{
		MaxTime: maxTime,
		Speed:   DefaultSpeed,
		now:     time.Now,
	}
}

// TogglePlay toggles playback. Playing from the end restarts.
func (p *PlaybackState) TogglePlay() {
	if p.Playing {
		p.Pause()
		return
	}
	if p.CurrentTime >= p.MaxTime {
		p.CurrentTime = 0
	}
	p.Play()
}

// Play starts playback.
func (p *PlaybackState) Play() {
	p.Playing = true
	p.lastUpdate = p.now()
}

// Pause stops playback.
func (p *PlaybackState) Pause() {
	p.Playing = false
}

// Reset rewinds to timestep 0 and pauses.
func (p *PlaybackState) Reset() {
	p.CurrentTime = 0
	p.Playing = false
}

// End jumps to the final timestep and pauses.
func (p *PlaybackState) End() {
	p.CurrentTime = p.MaxTime
	p.Playing = false
}

// Advance moves the clock by the wall time since the last update.
func (p *PlaybackState) Advance() {
	if !p.Playing {
		return
	}
	now := p.now()
	elapsed := now.Sub(p.lastUpdate).Seconds()
	p.lastUpdate = now

	p.CurrentTime += elapsed * p.Speed
	if p.CurrentTime >= p.MaxTime {
		p.CurrentTime = p.MaxTime
		p.Playing = false
	}
}

// SetTime moves the playhead, clamped to [0, MaxTime].
func (p *PlaybackState) SetTime(t float64) {
	p.CurrentTime = math.Min(math.Max(t, 0), p.MaxTime)
}

// StepForward pauses and moves to the next whole timestep.
func (p *PlaybackState) StepForward() {
	p.Pause()
	p.SetTime(math.Floor(p.CurrentTime) + 1)
}

// StepBack pauses and moves to the previous whole timestep.
func (p *PlaybackState) StepBack() {
	p.Pause()
	p.SetTime(math.Ceil(p.CurrentTime) - 1)
}

// SetSpeed sets timesteps per second, clamped to a usable range.
func (p *PlaybackState) SetSpeed(speed float64) {
	p.Speed = math.Min(math.Max(speed, minSpeed), maxSpeed)
}

// Progress returns the playhead position in [0, 1].
func (p *PlaybackState) Progress() float64 {
	if p.MaxTime <= 0 {
		return 0
	}
	return p.CurrentTime / p.MaxTime
}
