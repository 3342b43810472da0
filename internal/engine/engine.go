// Package engine implements the Sequencer Engine (spec.md §4.2, C6): the
// playback state machine that owns the Audio Scheduler, coordinates
// pattern lookup and sample triggering, enforces transport semantics, and
// publishes step/state events over the Event Bus.
//
// Grounded on the teacher's sequencer/manager.go (Play/Stop, the
// interrupt-driven dispatch loop, and its UpdateChan notification
// pattern) generalized from the teacher's always-on multi-device queue
// manager into the spec's explicit Stopped/Playing/Paused transport.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-drumseq/drumseq/internal/clock"
	"github.com/go-drumseq/drumseq/internal/eventbus"
	"github.com/go-drumseq/drumseq/internal/pattern"
	"github.com/go-drumseq/drumseq/internal/player"
	"github.com/go-drumseq/drumseq/internal/registry"
	"github.com/go-drumseq/drumseq/internal/scheduler"
	"github.com/go-drumseq/drumseq/internal/seqlog"
	"github.com/go-drumseq/drumseq/internal/tick"
)

// Errors surfaced by the public contract (spec.md §4.2).
var (
	ErrNotInitialized     = errors.New("engine: not initialized")
	ErrAlreadyInitialized = errors.New("engine: already initialized")
	ErrNilAudioContext    = errors.New("engine: audio context is nil")
)

// TransportState is the engine's internal playback state (spec.md §4.2
// transition table).
type TransportState int

const (
	Stopped TransportState = iota
	Playing
	Paused
)

func (s TransportState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// AudioContext is the external collaborator initialize()/start() depend
// on (spec.md §4.2: "fails if audio_ctx is null", "if audio context is
// suspended, resume it first").
type AudioContext interface {
	Suspended() bool
	Resume() error
}

// PerfStats is the observable performance snapshot of spec.md §3.
type PerfStats struct {
	TotalSteps  int64
	AvgLatency  time.Duration
	MaxLatency  time.Duration
	TimingDrift float64
}

// SequencerState is the full observable snapshot of spec.md §3.
type SequencerState struct {
	IsPlaying      bool
	IsPaused       bool
	CurrentStep    int
	BPM            int
	Swing          float64
	StepResolution int
	NextStepTime   float64
	IsInitialized  bool
	PerfStats      PerfStats
}

// StepEvent is published on every step boundary.
type StepEvent struct {
	Step int
	When float64
}

// StateEvent is published on every transport/parameter state change.
type StateEvent struct {
	State SequencerState
}

// Deps bundles the Sequencer Engine's injected collaborators (spec.md
// §3 "Ownership & lifecycle": Pattern Manager and Sample Registry are
// non-owning references injected at initialize; Clock/RandSource/Tick
// Source parameterize the Scheduler the engine exclusively owns).
type Deps struct {
	Patterns *pattern.Manager
	Registry *registry.Registry
	Player   player.SamplePlayer
	Clock    clock.Clock
	Rand     scheduler.RandSource
	Ticks    tick.Source
}

// Engine is the Sequencer Engine (C6).
type Engine struct {
	mu          sync.RWMutex
	initialized bool
	state       TransportState

	audioCtx AudioContext
	patterns *pattern.Manager
	registry *registry.Registry
	player   player.SamplePlayer
	clk      clock.Clock
	sched    *scheduler.Scheduler

	totalSteps      int64
	timingDrift     float64
	skippedTriggers int64

	stepBus  *eventbus.Bus[StepEvent]
	stateBus *eventbus.Bus[StateEvent]
}

// New creates an uninitialized Engine.
func New() *Engine {
	return &Engine{
		state:    Stopped,
		stepBus:  eventbus.New[StepEvent](),
		stateBus: eventbus.New[StateEvent](),
	}
}

// Initialize wires the engine to its collaborators and constructs the
// scheduler it will exclusively own (spec.md §4.2). One-shot: a second
// call without an intervening Destroy fails.
func (e *Engine) Initialize(ctx AudioContext, deps Deps) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	if ctx == nil {
		return ErrNilAudioContext
	}

	bpm, swing, resolution := 120, 0.0, 16
	if p, err := deps.Patterns.GetCurrentPattern(); err == nil {
		bpm, swing, resolution = p.BPM, p.Swing, p.StepResolution
	}

	sched := scheduler.New(deps.Clock, deps.Rand, deps.Ticks, bpm, swing, resolution)
	sched.SetStepSink(e.handleStep)
	sched.SetNoteSink(e.handleScheduleNote)

	e.audioCtx = ctx
	e.patterns = deps.Patterns
	e.registry = deps.Registry
	e.player = deps.Player
	e.clk = deps.Clock
	e.sched = sched
	e.initialized = true
	e.state = Stopped
	return nil
}

// Start implements the "start" transition of spec.md §4.2's table:
// Stopped -> Playing (reset step/stats), Paused -> Playing (keep step),
// Playing -> no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.audioCtx.Suspended() {
		if err := e.audioCtx.Resume(); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("engine: resume audio context: %w", err)
		}
	}

	switch e.state {
	case Stopped:
		e.totalSteps = 0
		e.timingDrift = 0
		e.skippedTriggers = 0
		e.state = Playing
		sched := e.sched
		e.mu.Unlock()
		sched.Start()
		e.publishState()
		return nil
	case Paused:
		e.state = Playing
		sched := e.sched
		e.mu.Unlock()
		sched.Resume()
		e.publishState()
		return nil
	default: // Playing
		e.mu.Unlock()
		return nil
	}
}

// Stop implements the "stop" transition: Playing/Paused -> Stopped,
// Stopped -> no-op. Synchronous: no further step events are delivered
// once Stop returns (spec.md §5).
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.state == Stopped {
		e.mu.Unlock()
		return nil
	}
	e.state = Stopped
	sched := e.sched
	e.mu.Unlock()

	sched.Stop()
	e.publishState()
	return nil
}

// Pause implements the "pause" transition: Playing -> Paused, otherwise
// no-op.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.state != Playing {
		e.mu.Unlock()
		return nil
	}
	e.state = Paused
	sched := e.sched
	e.mu.Unlock()

	sched.Pause()
	e.publishState()
	return nil
}

// Resume implements the "resume" transition: Paused -> Playing (keep
// step), otherwise no-op.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.state != Paused {
		e.mu.Unlock()
		return nil
	}
	e.state = Playing
	sched := e.sched
	e.mu.Unlock()

	sched.Resume()
	e.publishState()
	return nil
}

// SetBPM validates and forwards a tempo change to the scheduler (I7). A
// rejected change leaves state untouched and fires no state event (B3, S6).
func (e *Engine) SetBPM(bpm int) error {
	e.mu.RLock()
	initialized := e.initialized
	sched := e.sched
	e.mu.RUnlock()
	if !initialized {
		return ErrNotInitialized
	}
	if err := sched.SetBPM(bpm); err != nil {
		return err
	}
	e.publishState()
	return nil
}

// SetSwing validates and forwards a swing change to the scheduler (I7).
func (e *Engine) SetSwing(swing float64) error {
	e.mu.RLock()
	initialized := e.initialized
	sched := e.sched
	e.mu.RUnlock()
	if !initialized {
		return ErrNotInitialized
	}
	if err := sched.SetSwing(swing); err != nil {
		return err
	}
	e.publishState()
	return nil
}

// SetStepResolution validates and applies a resolution change: the
// Pattern Manager remaps every track's step array (I3), then the
// scheduler resyncs its resolution and current_step (spec.md §4.2/§4.3,
// S4). Both sides commit together, or neither does.
func (e *Engine) SetStepResolution(newR int) error {
	e.mu.RLock()
	initialized := e.initialized
	sched := e.sched
	patterns := e.patterns
	e.mu.RUnlock()
	if !initialized {
		return ErrNotInitialized
	}

	p, err := patterns.GetCurrentPattern()
	if err != nil {
		return err
	}
	oldR := p.StepResolution

	if err := patterns.ChangeStepResolution(newR); err != nil {
		return err
	}

	oldStep := sched.CurrentStep()
	newStep := pattern.RemapCurrentStep(oldStep, oldR, newR)
	sched.SyncResolution(newR, newStep)

	e.publishState()
	return nil
}

// GetState returns an immutable snapshot of the engine's observable state.
func (e *Engine) GetState() SequencerState {
	e.mu.RLock()
	initialized := e.initialized
	state := e.state
	totalSteps := e.totalSteps
	drift := e.timingDrift
	sched := e.sched
	patterns := e.patterns
	e.mu.RUnlock()

	snap := SequencerState{
		IsInitialized: initialized,
		IsPlaying:     state == Playing,
		IsPaused:      state == Paused,
	}
	if sched != nil {
		snap.CurrentStep = sched.CurrentStep()
		snap.NextStepTime = sched.NextStepTime()
		st := sched.Stats()
		snap.PerfStats = PerfStats{
			TotalSteps:  totalSteps,
			AvgLatency:  st.AverageLatency,
			MaxLatency:  st.MaxLatency,
			TimingDrift: drift,
		}
	}
	if patterns != nil {
		if p, err := patterns.GetCurrentPattern(); err == nil {
			snap.BPM = p.BPM
			snap.Swing = p.Swing
			snap.StepResolution = p.StepResolution
		}
	}
	return snap
}

// SkippedTriggers reports the count of active steps silently skipped
// because their track had no assigned or resolvable sample (spec.md §7
// "Consistency error").
func (e *Engine) SkippedTriggers() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.skippedTriggers
}

// OnStep subscribes to step events; cb receives (step_idx, when).
func (e *Engine) OnStep(cb func(step int, when float64)) eventbus.Token {
	return e.stepBus.Subscribe(func(ev StepEvent) { cb(ev.Step, ev.When) })
}

// RemoveStepCallback unsubscribes a step callback.
func (e *Engine) RemoveStepCallback(tok eventbus.Token) {
	e.stepBus.Unsubscribe(tok)
}

// OnStateChange subscribes to state-change events.
func (e *Engine) OnStateChange(cb func(SequencerState)) eventbus.Token {
	return e.stateBus.Subscribe(func(ev StateEvent) { cb(ev.State) })
}

// RemoveStateCallback unsubscribes a state-change callback.
func (e *Engine) RemoveStateCallback(tok eventbus.Token) {
	e.stateBus.Unsubscribe(tok)
}

// Destroy stops playback, releases the scheduler, and clears all
// callbacks. Idempotent (R3): a second call is a no-op.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = false
	e.state = Stopped
	sched := e.sched
	e.sched = nil
	e.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	e.stepBus = eventbus.New[StepEvent]()
	e.stateBus = eventbus.New[StateEvent]()
}

// handleScheduleNote bridges the scheduler's adjusted note trigger to the
// external sample player (spec.md §6).
func (e *Engine) handleScheduleNote(when float64, handle any, velocity float32, trackID string) error {
	h, ok := handle.(registry.Handle)
	if !ok {
		return fmt.Errorf("engine: unexpected sample handle type %T", handle)
	}
	return e.player.Play(h, when, velocity, trackID)
}

// handleStep is the scheduler's on_step callback (spec.md §4.2 step
// handler): it records drift, computes the effective track set (mute/solo,
// I5/I6), schedules triggers for active unmuted steps, and republishes the
// step event to engine subscribers.
func (e *Engine) handleStep(step int, when float64) {
	defer func() {
		if r := recover(); r != nil {
			seqlog.Log("engine", "step handler panic recovered: %v", r)
		}
	}()

	actual := e.clk.Now()
	drift := actual - when
	if drift < 0 {
		drift = -drift
	}

	e.mu.Lock()
	e.totalSteps++
	e.timingDrift = drift
	e.mu.Unlock()

	p, err := e.patterns.GetCurrentPattern()
	if err != nil {
		e.stepBus.Publish(StepEvent{Step: step, When: when})
		return
	}

	anySolo := false
	for _, t := range p.Tracks {
		if t.Solo {
			anySolo = true
			break
		}
	}

	for _, t := range p.Tracks {
		if anySolo && !t.Solo { // I6
			continue
		}
		if t.Mute || e.registry.IsMuted(t.ID) { // I5
			continue
		}
		if step < 0 || step >= len(t.Steps) {
			continue
		}
		st := t.Steps[step]
		if !st.Active {
			continue
		}
		if t.SampleID == "" {
			e.recordSkipped()
			continue
		}
		handle, ok := e.registry.Get(t.SampleID)
		if !ok {
			e.recordSkipped()
			continue
		}
		baseVelocity := st.Velocity * t.Volume * e.registry.GetVolume(t.ID)
		e.sched.ScheduleNote(when, handle, baseVelocity, t.Randomization, t.ID)
	}

	e.stepBus.Publish(StepEvent{Step: step, When: when})
}

func (e *Engine) recordSkipped() {
	e.mu.Lock()
	e.skippedTriggers++
	e.mu.Unlock()
}

func (e *Engine) publishState() {
	e.stateBus.Publish(StateEvent{State: e.GetState()})
}
