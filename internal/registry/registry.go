// Package registry implements the Sample Registry (spec.md §4.4, C5):
// opaque sample handles plus per-track audio-level overrides (volume,
// mute) kept separate from pattern state.
//
// Grounded on the teacher's sequencer/kits.go (named DrumKit -> MIDI-note
// maps, GetKit/DefaultKit) generalized from a fixed 16-slot GM drum kit
// into an id-keyed handle registry, with pack manifests loaded the way
// the rest of the retrieval pack's tooling repo (o9nn-echo.go) loads
// YAML config via gopkg.in/yaml.v3.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrSampleNotFound is returned when looking up an unknown sample id.
var ErrSampleNotFound = errors.New("registry: sample not found")

// Handle is the opaque identifier plus descriptive metadata the registry
// owns for a loaded sample (spec.md §3). Patterns store only the ID.
type Handle struct {
	ID         string   `yaml:"id" json:"id"`
	URL        string   `yaml:"url" json:"url"`
	SampleRate int      `yaml:"sampleRate" json:"sampleRate"`
	Duration   float64  `yaml:"duration" json:"duration"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Progress is a loading-progress snapshot for UI consumption (spec.md §4.4).
type Progress struct {
	Total      int
	Loaded     int
	Percentage float64
	IsLoading  bool
}

// packManifest is the on-disk shape of packs/<name>.yaml.
type packManifest struct {
	Name    string   `yaml:"name"`
	Samples []Handle `yaml:"samples"`
}

// Registry owns sample handles and per-track volume/mute overrides.
type Registry struct {
	mu sync.RWMutex

	handles    map[string]Handle
	preloaded  map[string]bool
	trackToSample map[string]string
	trackVolume   map[string]float32
	trackMute     map[string]bool

	progress Progress

	newID func() string
}

// New creates an empty Sample Registry.
func New() *Registry {
	return &Registry{
		handles:       make(map[string]Handle),
		preloaded:     make(map[string]bool),
		trackToSample: make(map[string]string),
		trackVolume:   make(map[string]float32),
		trackMute:     make(map[string]bool),
		newID:         func() string { return uuid.New().String() },
	}
}

// LoadPack reads a pack manifest from packsDir/name.yaml and registers
// every sample it lists (spec.md §4.4 load_pack).
func (r *Registry) LoadPack(packsDir, name string) error {
	path := fmt.Sprintf("%s/%s.yaml", packsDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("registry: load pack %q: %w", name, err)
	}

	var manifest packManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("registry: parse pack %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.IsLoading = true
	r.progress.Total += len(manifest.Samples)
	for _, h := range manifest.Samples {
		if h.ID == "" {
			h.ID = r.newID()
		}
		r.handles[h.ID] = h
		r.progress.Loaded++
	}
	r.recomputeProgressLocked()
	return nil
}

func (r *Registry) recomputeProgressLocked() {
	if r.progress.Total == 0 {
		r.progress.Percentage = 0
	} else {
		r.progress.Percentage = float64(r.progress.Loaded) / float64(r.progress.Total) * 100
	}
	r.progress.IsLoading = r.progress.Loaded < r.progress.Total
}

// LoadSample registers a single sample handle.
func (r *Registry) LoadSample(id, url string, sampleRate int, duration float64, tags []string) Handle {
	if id == "" {
		id = r.newID()
	}
	h := Handle{ID: id, URL: url, SampleRate: sampleRate, Duration: duration, Tags: tags}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = h
	r.progress.Total++
	r.progress.Loaded++
	r.recomputeProgressLocked()
	return h
}

// Get looks up a handle by id.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// GetAll returns every registered handle.
func (r *Registry) GetAll() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// AssignToTrack binds a track id to a sample id. Returns false if the
// sample id is unknown (spec.md §4.4).
func (r *Registry) AssignToTrack(trackID, sampleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[sampleID]; !ok {
		return false
	}
	r.trackToSample[trackID] = sampleID
	return true
}

// GetTrackSample returns the handle currently assigned to a track.
func (r *Registry) GetTrackSample(trackID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sampleID, ok := r.trackToSample[trackID]
	if !ok {
		return Handle{}, false
	}
	h, ok := r.handles[sampleID]
	return h, ok
}

// SetMuted sets a track-level mute override, independent of pattern mute.
func (r *Registry) SetMuted(trackID string, muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackMute[trackID] = muted
}

// IsMuted reports whether the registry mutes a track, separate from the
// pattern's own Track.Mute (spec.md §4.2 step 3 ORs both sources).
func (r *Registry) IsMuted(trackID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trackMute[trackID]
}

// SetVolume sets a track-level volume override, clamped to [0,1].
func (r *Registry) SetVolume(trackID string, v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackVolume[trackID] = v
}

// GetVolume returns a track's registry-level volume override, defaulting
// to 1.0 (no attenuation) if never set.
func (r *Registry) GetVolume(trackID string) float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.trackVolume[trackID]; ok {
		return v
	}
	return 1.0
}

// Preload marks a set of sample ids as preloaded. Unknown ids are ignored.
func (r *Registry) Preload(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.handles[id]; ok {
			r.preloaded[id] = true
		}
	}
}

// IsPreloaded reports whether a sample id has been preloaded.
func (r *Registry) IsPreloaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.preloaded[id]
}

// Progress returns a snapshot of loading progress.
func (r *Registry) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Clear drops all handles and track overrides, but keeps the registry
// usable (LoadPack/LoadSample can be called again).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = make(map[string]Handle)
	r.preloaded = make(map[string]bool)
	r.trackToSample = make(map[string]string)
	r.trackVolume = make(map[string]float32)
	r.trackMute = make(map[string]bool)
	r.progress = Progress{}
}

// Destroy releases all registry state. Idempotent.
func (r *Registry) Destroy() {
	r.Clear()
}

// MustGet is a test/CLI convenience that panics on ErrSampleNotFound.
func (r *Registry) MustGet(id string) Handle {
	h, ok := r.Get(id)
	if !ok {
		panic(ErrSampleNotFound)
	}
	return h
}
