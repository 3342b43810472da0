// Package pattern implements the Pattern Manager (spec.md §4.3, C4): the
// in-memory model of patterns (tracks × steps), with CRUD operations,
// mute/solo/volume/velocity invariants, and resolution remapping.
//
// Grounded on the teacher's sequencer/state.go (DrumState/DrumPatternState/
// DrumTrackState/DrumStepState) and sequencer/drum.go's step-editing
// operations (ToggleStep, SetStep, SetNoteLaneLength), generalized from a
// fixed 16-track/128-pattern drum grid to the spec's variable-track,
// variable-resolution pattern model.
package pattern

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Valid step resolutions (spec.md §3, I7).
var validResolutions = map[int]bool{8: true, 16: true, 32: true, 64: true}

// Errors surfaced by Manager operations. Configuration errors leave state
// unchanged, per spec.md §7.
var (
	ErrPatternNotFound  = errors.New("pattern: not found")
	ErrTrackNotFound    = errors.New("pattern: track not found")
	ErrNoCurrentPattern = errors.New("pattern: no current pattern loaded")
	ErrInvalidBPM       = errors.New("pattern: bpm out of range [60,200]")
	ErrInvalidSwing     = errors.New("pattern: swing out of range [0,100]")
	ErrInvalidResolution = errors.New("pattern: resolution must be one of 8, 16, 32, 64")
	ErrInvalidTrackCount = errors.New("pattern: track count must be > 0")
	ErrInvalidStepCount  = errors.New("pattern: track step count does not match resolution")
)

// defaultInstrumentNames seeds newly created patterns, per spec.md §4.3.
var defaultInstrumentNames = []string{
	"Kick", "Snare", "Hi-Hat", "Open Hat", "Crash", "Ride", "Clap", "Perc",
}

// Step is a single beat cell (spec.md §3).
type Step struct {
	Active   bool    `json:"active"`
	Velocity float32 `json:"velocity"`
}

// RandomParam is one axis of track randomization (spec.md §3).
type RandomParam struct {
	Enabled bool    `json:"enabled"`
	Amount  float64 `json:"amount"` // 0..100
}

// Randomization bundles velocity and timing randomization for a track.
type Randomization struct {
	Velocity RandomParam `json:"velocity"`
	Timing   RandomParam `json:"timing"`
}

// Track is one row of a pattern (spec.md §3). Invariant: len(Steps) ==
// pattern.StepResolution (I3).
type Track struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	SampleID      string        `json:"sampleId,omitempty"`
	Volume        float32       `json:"volume"`
	Mute          bool          `json:"mute"`
	Solo          bool          `json:"solo"`
	Color         string        `json:"color"`
	Steps         []Step        `json:"steps"`
	Randomization Randomization `json:"randomization"`
}

// Metadata tracks pattern creation/modification times.
type Metadata struct {
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Pattern is the full tracks × steps model for one pattern (spec.md §3).
type Pattern struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	BPM            int       `json:"bpm"`
	Swing          float64   `json:"swing"`
	StepResolution int       `json:"stepResolution"`
	Tracks         []*Track  `json:"tracks"`
	Metadata       Metadata  `json:"metadata"`
}

// clone deep-copies a pattern so callers can never mutate manager-owned
// state through a returned value (spec.md §5: readers get an immutable
// snapshot).
func (p *Pattern) clone() *Pattern {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tracks = make([]*Track, len(p.Tracks))
	for i, t := range p.Tracks {
		tc := *t
		tc.Steps = append([]Step(nil), t.Steps...)
		cp.Tracks[i] = &tc
	}
	return &cp
}

// Manager owns all patterns and the "current pattern" pointer (spec.md
// §4.3, C4). Safe for concurrent use; writers never hold the lock across
// anything beyond a map/slice mutation.
type Manager struct {
	mu          sync.RWMutex
	patterns    map[string]*Pattern
	order       []string
	currentID   string
	newID       func() string
	now         func() time.Time
}

// NewManager creates an empty Pattern Manager.
func NewManager() *Manager {
	return &Manager{
		patterns: make(map[string]*Pattern),
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

func defaultTrackName(i int) string {
	if i < len(defaultInstrumentNames) {
		return defaultInstrumentNames[i]
	}
	return fmt.Sprintf("Track %d", i+1)
}

// CreatePattern produces a fresh pattern with BPM=120, swing=0, and
// numTracks tracks of stepResolution inactive steps at velocity 0.8,
// volume 0.8 (spec.md §4.3). It does not become the current pattern.
func (m *Manager) CreatePattern(name string, numTracks, stepResolution int) (*Pattern, error) {
	if numTracks <= 0 {
		return nil, ErrInvalidTrackCount
	}
	if !validResolutions[stepResolution] {
		return nil, ErrInvalidResolution
	}

	now := m.now()
	p := &Pattern{
		ID:             m.newID(),
		Name:           name,
		BPM:            120,
		Swing:          0,
		StepResolution: stepResolution,
		Metadata:       Metadata{Created: now, Modified: now},
	}
	for i := 0; i < numTracks; i++ {
		steps := make([]Step, stepResolution)
		for s := range steps {
			steps[s] = Step{Active: false, Velocity: 0.8}
		}
		p.Tracks = append(p.Tracks, &Track{
			ID:     m.newID(),
			Name:   defaultTrackName(i),
			Volume: 0.8,
			Steps:  steps,
		})
	}

	m.mu.Lock()
	m.patterns[p.ID] = p
	m.order = append(m.order, p.ID)
	m.mu.Unlock()

	return p.clone(), nil
}

// LoadPattern sets the current pattern, failing if the id is unknown or
// the stored pattern no longer validates.
func (m *Manager) LoadPattern(id string) (*Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patterns[id]
	if !ok {
		return nil, ErrPatternNotFound
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	m.currentID = id
	return p.clone(), nil
}

// SavePattern inserts or updates a pattern, bumping Metadata.Modified, and
// returns its id. Validation failures leave stored state unchanged (I7).
func (m *Manager) SavePattern(p *Pattern) (string, error) {
	if p == nil {
		return "", ErrPatternNotFound
	}
	if err := validate(p); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := p.clone()
	if cp.ID == "" {
		cp.ID = m.newID()
		cp.Metadata.Created = m.now()
	}
	cp.Metadata.Modified = m.now()

	if _, exists := m.patterns[cp.ID]; !exists {
		m.order = append(m.order, cp.ID)
	}
	m.patterns[cp.ID] = cp
	return cp.ID, nil
}

// GetCurrentPattern returns a snapshot of the current pattern.
func (m *Manager) GetCurrentPattern() (*Pattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.currentID == "" {
		return nil, ErrNoCurrentPattern
	}
	p, ok := m.patterns[m.currentID]
	if !ok {
		return nil, ErrNoCurrentPattern
	}
	return p.clone(), nil
}

// CurrentPatternID returns the id of the current pattern, or "" if none.
func (m *Manager) CurrentPatternID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

// GetAllPatterns returns snapshots of every pattern, in creation order.
func (m *Manager) GetAllPatterns() []*Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Pattern, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.patterns[id]; ok {
			out = append(out, p.clone())
		}
	}
	return out
}

// mutateCurrent runs fn against the live current pattern under the write
// lock, then re-validates before committing, so failed edits never leave
// partial state (spec.md §7: configuration errors leave state unchanged).
func (m *Manager) mutateCurrent(fn func(p *Pattern) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentID == "" {
		return ErrNoCurrentPattern
	}
	p, ok := m.patterns[m.currentID]
	if !ok {
		return ErrNoCurrentPattern
	}

	working := p.clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := validate(working); err != nil {
		return err
	}
	working.Metadata.Modified = m.now()
	m.patterns[m.currentID] = working
	return nil
}

func findTrack(p *Pattern, trackID string) (*Track, error) {
	for _, t := range p.Tracks {
		if t.ID == trackID {
			return t, nil
		}
	}
	return nil, ErrTrackNotFound
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToggleStep flips a step's active flag (R1: toggling twice is the identity).
func (m *Manager) ToggleStep(trackID string, stepIdx int) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		if stepIdx < 0 || stepIdx >= len(t.Steps) {
			return fmt.Errorf("pattern: step index %d out of range", stepIdx)
		}
		t.Steps[stepIdx].Active = !t.Steps[stepIdx].Active
		return nil
	})
}

// SetStepVelocity sets a step's velocity, clamped to [0,1].
func (m *Manager) SetStepVelocity(trackID string, stepIdx int, v float32) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		if stepIdx < 0 || stepIdx >= len(t.Steps) {
			return fmt.Errorf("pattern: step index %d out of range", stepIdx)
		}
		t.Steps[stepIdx].Velocity = clampF32(v, 0, 1)
		return nil
	})
}

// SetTrackVolume sets a track's volume, clamped to [0,1].
func (m *Manager) SetTrackVolume(trackID string, v float32) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.Volume = clampF32(v, 0, 1)
		return nil
	})
}

// ToggleTrackMute flips a track's mute flag.
func (m *Manager) ToggleTrackMute(trackID string) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.Mute = !t.Mute
		return nil
	})
}

// ToggleTrackSolo flips a track's solo flag.
func (m *Manager) ToggleTrackSolo(trackID string) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.Solo = !t.Solo
		return nil
	})
}

// SetTrackName renames a track.
func (m *Manager) SetTrackName(trackID, name string) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.Name = name
		return nil
	})
}

// SetTrackColor sets a track's display color.
func (m *Manager) SetTrackColor(trackID, color string) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.Color = color
		return nil
	})
}

// SetTrackRandomization sets a track's randomization config, clamping
// amounts to [0,100].
func (m *Manager) SetTrackRandomization(trackID string, r Randomization) error {
	r.Velocity.Amount = clampF64(r.Velocity.Amount, 0, 100)
	r.Timing.Amount = clampF64(r.Timing.Amount, 0, 100)
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.Randomization = r
		return nil
	})
}

// AssignSample sets a track's sample id (weak reference; lookup failure
// in the registry is a silent skip at playback time, per spec.md §3).
func (m *Manager) AssignSample(trackID, sampleID string) error {
	return m.mutateCurrent(func(p *Pattern) error {
		t, err := findTrack(p, trackID)
		if err != nil {
			return err
		}
		t.SampleID = sampleID
		return nil
	})
}

// remapSteps implements the resolution remapping rule of spec.md §4.3:
// upsample preserves position and velocity; downsample groups runs of
// old_r/new_r cells, active iff any was active, velocity = max of the
// group.
func remapSteps(steps []Step, oldR, newR int) []Step {
	if oldR == newR {
		out := make([]Step, newR)
		copy(out, steps)
		return out
	}
	if newR > oldR {
		ratio := newR / oldR
		out := make([]Step, newR)
		for i := range out {
			out[i] = Step{Active: false, Velocity: 0.8}
		}
		for i, st := range steps {
			if st.Active {
				out[i*ratio] = Step{Active: true, Velocity: st.Velocity}
			}
		}
		return out
	}

	group := oldR / newR
	out := make([]Step, newR)
	for i := range out {
		active := false
		var maxVel float32
		for j := 0; j < group; j++ {
			idx := i*group + j
			if idx >= len(steps) {
				continue
			}
			if steps[idx].Active {
				active = true
				if steps[idx].Velocity > maxVel {
					maxVel = steps[idx].Velocity
				}
			}
		}
		v := maxVel
		if !active {
			v = 0.8
		}
		out[i] = Step{Active: active, Velocity: v}
	}
	return out
}

// RemapCurrentStep computes the new current-step index after a resolution
// change, preserving relative musical position (spec.md §4.3/§4.4, S4).
func RemapCurrentStep(current, oldR, newR int) int {
	if oldR <= 0 || newR <= 0 {
		return 0
	}
	idx := int(math.Floor(float64(current) * float64(newR) / float64(oldR)))
	idx %= newR
	if idx < 0 {
		idx += newR
	}
	return idx
}

// ChangeStepResolution remaps every track of the current pattern to a new
// step resolution (I3), preserving active-step musical position (§4.3).
func (m *Manager) ChangeStepResolution(newR int) error {
	if !validResolutions[newR] {
		return ErrInvalidResolution
	}
	return m.mutateCurrent(func(p *Pattern) error {
		oldR := p.StepResolution
		if oldR == newR {
			return nil
		}
		for _, t := range p.Tracks {
			t.Steps = remapSteps(t.Steps, oldR, newR)
		}
		p.StepResolution = newR
		return nil
	})
}

// ClearPattern deactivates every step of every track in the current
// pattern. Velocities are left untouched.
func (m *Manager) ClearPattern() error {
	return m.mutateCurrent(func(p *Pattern) error {
		for _, t := range p.Tracks {
			for i := range t.Steps {
				t.Steps[i].Active = false
			}
		}
		return nil
	})
}

// DuplicatePattern deep-copies a pattern under a new id/name. The
// duplicate does not become current.
func (m *Manager) DuplicatePattern(id, newName string) (*Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.patterns[id]
	if !ok {
		return nil, ErrPatternNotFound
	}
	cp := src.clone()
	cp.ID = m.newID()
	cp.Name = newName
	now := m.now()
	cp.Metadata = Metadata{Created: now, Modified: now}

	m.patterns[cp.ID] = cp
	m.order = append(m.order, cp.ID)
	return cp.clone(), nil
}

// DeletePattern removes a pattern. If it was current, there is no longer
// a current pattern until LoadPattern is called again.
func (m *Manager) DeletePattern(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patterns[id]; !ok {
		return ErrPatternNotFound
	}
	delete(m.patterns, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.currentID == id {
		m.currentID = ""
	}
	return nil
}

// ValidatePattern reports whether p satisfies every data-model invariant
// of spec.md §3/§4.3.
func (m *Manager) ValidatePattern(p *Pattern) bool {
	return validate(p) == nil
}

func validate(p *Pattern) error {
	if p == nil {
		return ErrPatternNotFound
	}
	if p.BPM < 60 || p.BPM > 200 {
		return ErrInvalidBPM
	}
	if p.Swing < 0 || p.Swing > 100 {
		return ErrInvalidSwing
	}
	if !validResolutions[p.StepResolution] {
		return ErrInvalidResolution
	}
	if len(p.Tracks) == 0 {
		return ErrInvalidTrackCount
	}
	for _, t := range p.Tracks {
		if len(t.Steps) != p.StepResolution {
			return ErrInvalidStepCount
		}
		if t.Volume < 0 || t.Volume > 1 {
			return fmt.Errorf("pattern: track %q volume out of range", t.ID)
		}
		for _, s := range t.Steps {
			if s.Velocity < 0 || s.Velocity > 1 {
				return fmt.Errorf("pattern: track %q has velocity out of range", t.ID)
			}
		}
	}
	return nil
}
