package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSampleAndGet(t *testing.T) {
	r := New()
	h := r.LoadSample("", "file://kick.wav", 44100, 0.4, []string{"kick"})
	assert.NotEmpty(t, h.ID)

	got, ok := r.Get(h.ID)
	require.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestAssignToTrackRejectsUnknownSample(t *testing.T) {
	r := New()
	assert.False(t, r.AssignToTrack("track-1", "no-such-sample"))

	h := r.LoadSample("snare", "file://snare.wav", 44100, 0.3, nil)
	assert.True(t, r.AssignToTrack("track-1", h.ID))

	got, ok := r.GetTrackSample("track-1")
	require.True(t, ok)
	assert.Equal(t, h.ID, got.ID)
}

func TestTrackVolumeDefaultsToUnity(t *testing.T) {
	r := New()
	assert.Equal(t, float32(1.0), r.GetVolume("unknown-track"))

	r.SetVolume("t1", 0.5)
	assert.Equal(t, float32(0.5), r.GetVolume("t1"))

	r.SetVolume("t1", 5) // clamps to [0,1]
	assert.Equal(t, float32(1.0), r.GetVolume("t1"))
}

func TestMuteOverrideIsIndependentOfPattern(t *testing.T) {
	r := New()
	assert.False(t, r.IsMuted("t1"))
	r.SetMuted("t1", true)
	assert.True(t, r.IsMuted("t1"))
}

func TestPreload(t *testing.T) {
	r := New()
	h := r.LoadSample("", "file://c.wav", 44100, 0.2, nil)
	assert.False(t, r.IsPreloaded(h.ID))

	r.Preload([]string{h.ID, "unknown-id"})
	assert.True(t, r.IsPreloaded(h.ID))
	assert.False(t, r.IsPreloaded("unknown-id"))
}

func TestProgressTracking(t *testing.T) {
	r := New()
	p := r.Progress()
	assert.Equal(t, 0.0, p.Percentage)

	r.LoadSample("", "a.wav", 44100, 0.1, nil)
	r.LoadSample("", "b.wav", 44100, 0.1, nil)

	p = r.Progress()
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 2, p.Loaded)
	assert.Equal(t, 100.0, p.Percentage)
	assert.False(t, p.IsLoading)
}

func TestLoadPackFromYAML(t *testing.T) {
	dir := t.TempDir()
	manifest := `
name: test-pack
samples:
  - id: tp-kick
    url: samples/test/kick.wav
    sampleRate: 44100
    duration: 0.4
    tags: [kick, "midi-note:36"]
  - id: tp-snare
    url: samples/test/snare.wav
    sampleRate: 44100
    duration: 0.3
    tags: [snare]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-pack.yaml"), []byte(manifest), 0644))

	r := New()
	require.NoError(t, r.LoadPack(dir, "test-pack"))

	kick, ok := r.Get("tp-kick")
	require.True(t, ok)
	assert.Equal(t, "samples/test/kick.wav", kick.URL)
	assert.Contains(t, kick.Tags, "midi-note:36")

	assert.Len(t, r.GetAll(), 2)
}

func TestLoadPackMissingFile(t *testing.T) {
	r := New()
	err := r.LoadPack(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestClearResetsState(t *testing.T) {
	r := New()
	h := r.LoadSample("", "a.wav", 44100, 0.1, nil)
	r.AssignToTrack("t1", h.ID)
	r.SetMuted("t1", true)

	r.Clear()
	_, ok := r.Get(h.ID)
	assert.False(t, ok)
	_, ok = r.GetTrackSample("t1")
	assert.False(t, ok)
	assert.False(t, r.IsMuted("t1"))
}
