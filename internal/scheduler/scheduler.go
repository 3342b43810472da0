// Package scheduler implements the Audio Scheduler (spec.md §4.1, C3): a
// lookahead scheduler that converts tempo, resolution, swing, and
// randomization into a sequence of clock-anchored note-trigger times.
//
// Grounded on the teacher's sequencer/drum.go queue-fill/schedule logic
// and sequencer/manager.go's fillQueues/midiOutputLoop timing loop, and
// on the lookahead-horizon idiom shared by the pack's other scheduler
// implementations (e.g. celaya-beats-scheduler.go's beat-duration timer
// loop). The teacher anchors timing in absolute ticks against wall-clock
// time.Now(); this generalizes that to the injectable clock.Clock this
// spec requires for deterministic tests.
package scheduler

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/go-drumseq/drumseq/internal/clock"
	"github.com/go-drumseq/drumseq/internal/pattern"
	"github.com/go-drumseq/drumseq/internal/seqlog"
	"github.com/go-drumseq/drumseq/internal/tick"
)

// Tuning constants from spec.md §4.1.
const (
	DefaultLookahead     = 25 * time.Millisecond
	DefaultScheduleAhead = 100 * time.Millisecond

	swingMaxFraction        = 0.30 // odd-step delay at swing=100
	timingRandomMaxFraction = 0.10 // max timing jitter as a fraction of step duration
	defaultVelocityFloor    = 0.1
)

// Configuration errors, per spec.md §7 (rejected at the entry point,
// state unchanged).
var (
	ErrInvalidBPM        = errors.New("scheduler: bpm out of range [60,200]")
	ErrInvalidSwing      = errors.New("scheduler: swing out of range [0,100]")
	ErrInvalidResolution = errors.New("scheduler: resolution must be one of 8, 16, 32, 64")
)

// RandSource yields uniform floats in [0,1). Injectable so randomization
// is deterministic in tests (spec.md §9 "Randomization seeding").
type RandSource interface {
	Float64() float64
}

// NoteSink receives an adjusted, ready-to-play note trigger. The handle is
// opaque to the scheduler (it never interprets it); the caller supplies
// whatever its sample registry produced (spec.md §6).
type NoteSink func(when float64, handle any, velocity float32, trackID string) error

// StepSink is notified at every step boundary the loop advances through.
type StepSink func(step int, when float64)

// Stats tracks schedule_note performance (spec.md §4.1).
type Stats struct {
	TotalScheduled int64
	AverageLatency time.Duration
	MaxLatency     time.Duration
	SinkErrors     int64
}

// Scheduler is the Audio Scheduler (C3).
type Scheduler struct {
	clk   clock.Clock
	rand  RandSource
	ticks tick.Source

	scheduleAhead time.Duration
	velocityFloor float32

	mu           sync.Mutex
	bpm          int
	swing        float64
	resolution   int
	nextStepTime float64
	currentStep  int
	running      bool
	stats        Stats

	onStep         StepSink
	onScheduleNote NoteSink
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithScheduleAhead overrides the default 100ms scheduling horizon.
func WithScheduleAhead(d time.Duration) Option {
	return func(s *Scheduler) { s.scheduleAhead = d }
}

// WithVelocityFloor overrides the default 0.1 randomized-velocity floor
// (spec.md §9 "Velocity clamp floor").
func WithVelocityFloor(f float32) Option {
	return func(s *Scheduler) { s.velocityFloor = f }
}

// New constructs a Scheduler. bpm/swing/resolution are the pattern's
// initial values; they must already be valid (the caller validates via
// the Pattern Manager before wiring a new pattern in).
func New(clk clock.Clock, rnd RandSource, ticks tick.Source, bpm int, swing float64, resolution int, opts ...Option) *Scheduler {
	s := &Scheduler{
		clk:           clk,
		rand:          rnd,
		ticks:         ticks,
		scheduleAhead: DefaultScheduleAhead,
		velocityFloor: defaultVelocityFloor,
		bpm:           bpm,
		swing:         swing,
		resolution:    resolution,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetStepSink installs the callback invoked on every step boundary.
func (s *Scheduler) SetStepSink(fn StepSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStep = fn
}

// SetNoteSink installs the callback invoked for every scheduled note.
func (s *Scheduler) SetNoteSink(fn NoteSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onScheduleNote = fn
}

func stepsPerBeat(resolution int) float64 { return float64(resolution) / 4.0 }

func stepDuration(bpm, resolution int) float64 {
	secondsPerBeat := 60.0 / float64(bpm)
	return secondsPerBeat / stepsPerBeat(resolution)
}

// StepDuration returns the current step duration in seconds (B1, B2).
func (s *Scheduler) StepDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stepDuration(s.bpm, s.resolution)
}

// Start begins playback (I1): anchors next_step_time to now, resets
// current_step to 0, and starts the tick source.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.nextStepTime = s.clk.Now()
	s.currentStep = 0
	s.running = true
	s.stats = Stats{}
	s.mu.Unlock()

	s.ticks.Start(s.runOnce)
}

// Stop halts playback immediately and synchronously: no further step
// events are delivered after Stop returns (spec.md §5).
func (s *Scheduler) Stop() {
	s.ticks.Stop()
	s.mu.Lock()
	s.running = false
	s.currentStep = 0
	s.nextStepTime = 0
	s.mu.Unlock()
}

// Pause stops the tick source but preserves current_step/next_step_time.
func (s *Scheduler) Pause() {
	s.ticks.Stop()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Resume re-anchors next_step_time to the current clock (spec.md §9's
// chosen policy — see the Open Questions note in DESIGN.md) and restarts
// the tick source.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.nextStepTime = s.clk.Now()
	s.running = true
	s.mu.Unlock()

	s.ticks.Start(s.runOnce)
}

// IsRunning reports whether the scheduler is actively ticking.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentStep returns the 0-indexed step the scheduler is at.
func (s *Scheduler) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStep
}

// NextStepTime returns the clock-domain time of the next unfired step.
func (s *Scheduler) NextStepTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStepTime
}

// Stats returns a snapshot of scheduling performance counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func validResolution(r int) bool {
	switch r {
	case 8, 16, 32, 64:
		return true
	}
	return false
}

// SetBPM validates and applies a tempo change (I7). If running, it
// re-anchors next_step_time using the new step duration so a sharp BPM
// drop never produces a catch-up burst (spec.md §4.1, S5).
func (s *Scheduler) SetBPM(bpm int) error {
	if bpm < 60 || bpm > 200 {
		return ErrInvalidBPM
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bpm = bpm
	s.reanchorLocked()
	return nil
}

// SetSwing validates and applies a swing change (I7).
func (s *Scheduler) SetSwing(swing float64) error {
	if swing < 0 || swing > 100 {
		return ErrInvalidSwing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swing = swing
	s.reanchorLocked()
	return nil
}

// SetResolution validates and applies a resolution change (I7). The
// caller (engine) is responsible for remapping pattern step arrays and
// current_step via the pattern package; this only re-times the loop.
func (s *Scheduler) SetResolution(r int) error {
	if !validResolution(r) {
		return ErrInvalidResolution
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolution = r
	s.reanchorLocked()
	return nil
}

// SyncResolution updates the resolution and current step together,
// without validating bounds again — used by the engine after the
// Pattern Manager has already remapped step arrays for a resolution
// change it already validated.
func (s *Scheduler) SyncResolution(r int, currentStep int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolution = r
	s.currentStep = currentStep % r
	s.reanchorLocked()
}

// reanchorLocked re-anchors next_step_time so a parameter change never
// produces a runaway scheduling catch-up burst. Caller holds s.mu.
func (s *Scheduler) reanchorLocked() {
	if !s.running {
		return
	}
	s.nextStepTime = s.clk.Now() + stepDuration(s.bpm, s.resolution)
}

// applySwing delays odd-indexed steps by a fraction of the step duration
// proportional to the swing amount (spec.md §4.1 swing algorithm, P2/P6).
func applySwing(t float64, step int, swing, dur float64) float64 {
	if step%2 == 0 {
		return t
	}
	return t + dur*swingMaxFraction*(swing/100.0)
}

type dueStep struct {
	step int
	when float64
}

// runOnce executes one pass of the lookahead loop (spec.md §4.1
// pseudocode), called by the tick source roughly every lookahead
// interval. Step callbacks are invoked outside the lock so a slow
// subscriber cannot block the scheduler's own state transitions.
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	dur := stepDuration(s.bpm, s.resolution)
	horizon := s.clk.Now() + s.scheduleAhead.Seconds()

	// Transient clock jitter recovery (spec.md §7): if the tick source
	// stalled long enough that the backlog exceeds the schedule-ahead
	// horizon, fire at most maxCatchup overdue steps, write one drift
	// line to seqlog, and move next_step_time to the horizon, dropping
	// the rest of the backlog rather than bursting every overdue step.
	// Step subscribers receive no separate drift event.
	maxCatchup := int(math.Ceil(s.scheduleAhead.Seconds()/dur)) + 1

	var fire []dueStep
	for s.nextStepTime < horizon {
		if len(fire) >= maxCatchup {
			seqlog.LogEvery(1, "sched", "drift: schedule-ahead backlog exceeded, skipping to horizon")
			s.nextStepTime = horizon
			break
		}
		swung := applySwing(s.nextStepTime, s.currentStep, s.swing, dur)
		fire = append(fire, dueStep{step: s.currentStep, when: swung})
		s.currentStep = (s.currentStep + 1) % s.resolution
		s.nextStepTime += dur
	}
	onStep := s.onStep
	s.mu.Unlock()

	if onStep == nil {
		return
	}
	for _, d := range fire {
		onStep(d.step, d.when)
	}
}

func clampVelocity(v, floor float32) float32 {
	if v < floor {
		return floor
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// ScheduleNote applies track randomization and forwards the adjusted
// trigger to the note sink (spec.md §4.1 schedule_note). Sink errors are
// captured as performance events, never propagated (spec.md §7).
func (s *Scheduler) ScheduleNote(when float64, handle any, velocity float32, r pattern.Randomization, trackID string) {
	dur := s.StepDuration()

	adjTime := when
	if r.Timing.Enabled && r.Timing.Amount > 0 {
		delta := (s.rand.Float64() - 0.5) * 2 * dur * timingRandomMaxFraction * (r.Timing.Amount / 100.0)
		adjTime += delta
	}

	adjVel := velocity
	if r.Velocity.Enabled && r.Velocity.Amount > 0 {
		delta := float32((s.rand.Float64() - 0.5) * 2 * (r.Velocity.Amount / 100.0))
		adjVel = clampVelocity(velocity+delta, s.velocityFloor)
	}

	s.mu.Lock()
	sink := s.onScheduleNote
	s.mu.Unlock()

	start := time.Now()
	var err error
	if sink != nil {
		err = sink(adjTime, handle, adjVel, trackID)
	}
	latency := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalScheduled++
	n := s.stats.TotalScheduled
	if n == 1 {
		s.stats.AverageLatency = latency
	} else {
		s.stats.AverageLatency += (latency - s.stats.AverageLatency) / time.Duration(n)
	}
	if latency > s.stats.MaxLatency {
		s.stats.MaxLatency = latency
	}
	if err != nil {
		s.stats.SinkErrors++
		seqlog.LogEvery(20, "sched", "schedule_note sink error: %v", err)
	}
}
