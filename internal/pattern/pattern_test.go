package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLoadPattern(t *testing.T) {
	m := NewManager()

	p, err := m.CreatePattern("Demo", 3, 16)
	require.NoError(t, err)
	assert.Equal(t, 120, p.BPM)
	assert.Equal(t, 0.0, p.Swing)
	assert.Len(t, p.Tracks, 3)
	assert.Equal(t, "Kick", p.Tracks[0].Name)
	assert.Equal(t, "Snare", p.Tracks[1].Name)
	assert.Equal(t, "Hi-Hat", p.Tracks[2].Name)
	for _, tr := range p.Tracks {
		assert.Len(t, tr.Steps, 16)
		assert.Equal(t, float32(0.8), tr.Volume)
	}

	_, err = m.GetCurrentPattern()
	assert.ErrorIs(t, err, ErrNoCurrentPattern)

	loaded, err := m.LoadPattern(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, loaded.ID)

	cur, err := m.GetCurrentPattern()
	require.NoError(t, err)
	assert.Equal(t, p.ID, cur.ID)
}

func TestCreatePatternRejectsInvalidInput(t *testing.T) {
	m := NewManager()

	_, err := m.CreatePattern("bad tracks", 0, 16)
	assert.ErrorIs(t, err, ErrInvalidTrackCount)

	_, err = m.CreatePattern("bad res", 1, 13)
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestToggleStepIsItsOwnInverse(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 1, 16)
	m.LoadPattern(p.ID)
	track := p.Tracks[0].ID

	require.NoError(t, m.ToggleStep(track, 0))
	once, _ := m.GetCurrentPattern()
	assert.True(t, once.Tracks[0].Steps[0].Active)

	require.NoError(t, m.ToggleStep(track, 0))
	twice, _ := m.GetCurrentPattern()
	assert.False(t, twice.Tracks[0].Steps[0].Active)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 1, 16)
	m.LoadPattern(p.ID)

	snap, _ := m.GetCurrentPattern()
	snap.Tracks[0].Steps[0].Active = true // mutate the returned snapshot

	fresh, _ := m.GetCurrentPattern()
	assert.False(t, fresh.Tracks[0].Steps[0].Active, "mutating a snapshot must not affect manager state")
}

func TestSetBPMValidation(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 1, 16)
	m.LoadPattern(p.ID)

	tooSlow := p.clone()
	tooSlow.BPM = 50
	_, err := m.SavePattern(tooSlow)
	assert.ErrorIs(t, err, ErrInvalidBPM)

	tooFast := p.clone()
	tooFast.BPM = 201
	_, err = m.SavePattern(tooFast)
	assert.ErrorIs(t, err, ErrInvalidBPM)

	// state untouched by the rejected saves
	cur, _ := m.GetCurrentPattern()
	assert.Equal(t, 120, cur.BPM)
}

func TestToggleTrackMuteAffectsOnlyThatTrack(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 2, 16)
	m.LoadPattern(p.ID)

	require.NoError(t, m.ToggleTrackMute(p.Tracks[0].ID))
	cur, _ := m.GetCurrentPattern()
	assert.True(t, cur.Tracks[0].Mute)
	assert.False(t, cur.Tracks[1].Mute)
}

// Resolution remapping scenarios (spec.md §4.3's B-series examples).
func TestRemapStepsUpsample16to32(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 1, 16)
	m.LoadPattern(p.ID)
	track := p.Tracks[0].ID

	for _, idx := range []int{0, 4, 8, 12} {
		require.NoError(t, m.ToggleStep(track, idx))
	}

	require.NoError(t, m.ChangeStepResolution(32))
	cur, _ := m.GetCurrentPattern()
	assert.Len(t, cur.Tracks[0].Steps, 32)

	active := activeIndices(cur.Tracks[0].Steps)
	assert.Equal(t, []int{0, 8, 16, 24}, active)
}

func TestRemapStepsDownsample16to8(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 1, 16)
	m.LoadPattern(p.ID)
	track := p.Tracks[0].ID

	for _, idx := range []int{0, 4, 8, 12} {
		require.NoError(t, m.ToggleStep(track, idx))
	}

	require.NoError(t, m.ChangeStepResolution(8))
	cur, _ := m.GetCurrentPattern()
	assert.Len(t, cur.Tracks[0].Steps, 8)

	active := activeIndices(cur.Tracks[0].Steps)
	assert.Equal(t, []int{0, 2, 4, 6}, active)
}

func TestRemapCurrentStep(t *testing.T) {
	assert.Equal(t, 8, RemapCurrentStep(4, 16, 32))
	assert.Equal(t, 2, RemapCurrentStep(4, 16, 8))
	assert.Equal(t, 0, RemapCurrentStep(0, 16, 32))
}

func TestChangeStepResolutionRejectsInvalid(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("p", 1, 16)
	m.LoadPattern(p.ID)

	err := m.ChangeStepResolution(13)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	cur, _ := m.GetCurrentPattern()
	assert.Equal(t, 16, cur.StepResolution, "rejected resolution change leaves pattern untouched")
}

func TestDuplicateAndDeletePattern(t *testing.T) {
	m := NewManager()
	p, _ := m.CreatePattern("orig", 1, 16)
	m.LoadPattern(p.ID)

	dup, err := m.DuplicatePattern(p.ID, "copy")
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, dup.ID)
	assert.Equal(t, "copy", dup.Name)

	require.NoError(t, m.DeletePattern(dup.ID))
	_, err = m.LoadPattern(dup.ID)
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func activeIndices(steps []Step) []int {
	var out []int
	for i, s := range steps {
		if s.Active {
			out = append(out, i)
		}
	}
	return out
}
