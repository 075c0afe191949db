// Package engine runs a campaign: the fixed-step loop, the per-tick decision
// pipeline, commands arriving from outside the core, and snapshots.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Loop defaults.
const (
	DefaultMaxStep  = 0.033 // Largest dt a single step may advance, in seconds
	DefaultTickRate = 30    // Frames per real second
	MaxSubsteps     = 16    // Per frame; bounds catch-up after a long stall
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Steps taken (monotonic, never resets)
	Interval time.Duration // Real time between frames
	MaxStep  float64       // dt ceiling per step

	ReportEvery   float64 // Sim seconds between OnReport calls; 0 disables
	AutosaveEvery float64 // Sim seconds between OnAutosave calls; 0 disables

	// Callbacks, populated during setup.
	OnStep     func(tick uint64, dt float64) // Every step
	OnIdle     func()                        // Every frame while paused
	OnReport   func(tick uint64)
	OnAutosave func(tick uint64)

	mu          sync.Mutex
	speed       float64 // 1.0 = real time, 0 = paused
	running     bool
	sinceReport float64
	sinceSave   float64
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second / DefaultTickRate,
		MaxStep:  DefaultMaxStep,
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses.
func (e *Engine) SetSpeed(speed float64) error {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("speed must be a finite value >= 0, got %v", speed)
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	return nil
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) setRunning(v bool) {
	e.mu.Lock()
	e.running = v
	e.mu.Unlock()
}

// Run starts the real-time loop. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.setRunning(true)
	defer e.setRunning(false)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return
		case now := <-ticker.C:
			frame := now.Sub(last).Seconds()
			last = now

			speed := e.Speed()
			if speed <= 0 {
				// Paused: withhold steps but keep answering commands.
				if e.OnIdle != nil {
					e.OnIdle()
				}
				continue
			}
			// A stalled process must not replay the whole gap.
			budget := min(frame*speed, e.maxStep()*MaxSubsteps)
			e.Advance(budget)
		}
	}
}

// Advance steps the simulation through seconds of sim time in increments no
// larger than MaxStep. It returns the number of steps taken.
func (e *Engine) Advance(seconds float64) int {
	steps := 0
	for seconds > 1e-9 {
		dt := min(seconds, e.maxStep())
		e.step(dt)
		seconds -= dt
		steps++
	}
	return steps
}

func (e *Engine) maxStep() float64 {
	if e.MaxStep <= 0 {
		return DefaultMaxStep
	}
	return e.MaxStep
}

// step advances the simulation by one tick.
func (e *Engine) step(dt float64) {
	e.Tick++

	if e.OnStep != nil {
		e.OnStep(e.Tick, dt)
	}

	e.sinceReport += dt
	if e.ReportEvery > 0 && e.sinceReport >= e.ReportEvery {
		e.sinceReport = 0
		if e.OnReport != nil {
			e.OnReport(e.Tick)
		}
	}

	e.sinceSave += dt
	if e.AutosaveEvery > 0 && e.sinceSave >= e.AutosaveEvery {
		e.sinceSave = 0
		if e.OnAutosave != nil {
			e.OnAutosave(e.Tick)
		}
	}
}

// SimTime formats elapsed campaign seconds as a clock string.
func SimTime(elapsed float64) string {
	total := int64(max(elapsed, 0))
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("T+%d:%02d:%02d", hours, minutes, seconds)
}
