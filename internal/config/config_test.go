package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 25, c.Scheduler.LookaheadIntervalMS)
	assert.Equal(t, 100, c.Scheduler.ScheduleAheadMS)
	assert.Equal(t, "gm", c.DefaultPack)
}

func TestNormalizeFixesViolatedJitterGuarantee(t *testing.T) {
	c := &Config{Scheduler: SchedulerConfig{LookaheadIntervalMS: 80, ScheduleAheadMS: 100}}
	c.normalize()
	assert.Equal(t, 25, c.Scheduler.LookaheadIntervalMS)
	assert.Equal(t, 100, c.Scheduler.ScheduleAheadMS)
}

func TestNormalizeFillsDefaultPack(t *testing.T) {
	c := &Config{}
	c.normalize()
	assert.Equal(t, "gm", c.DefaultPack)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := DefaultConfig()
	c.AddOutput(OutputConfig{PortName: "IAC Driver Bus 1", Channel: 2, AutoConnect: true})
	require.NoError(t, c.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, c.DefaultPack, loaded.DefaultPack)
	require.Len(t, loaded.Outputs, 2) // default placeholder output + the added one
	assert.Equal(t, "IAC Driver Bus 1", loaded.Outputs[1].PortName)
}

func TestLoadReturnsDefaultsWhenMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DefaultPack, c.DefaultPack)
}

func TestFindAndAddOutput(t *testing.T) {
	c := DefaultConfig()
	c.Outputs = nil
	c.AddOutput(OutputConfig{PortName: "A", Channel: 1})
	c.AddOutput(OutputConfig{PortName: "A", Channel: 5}) // update, not duplicate

	require.Len(t, c.Outputs, 1)
	assert.Equal(t, 5, c.Outputs[0].Channel)

	found := c.FindOutput("A")
	require.NotNil(t, found)
	assert.Equal(t, 5, found.Channel)

	assert.Nil(t, c.FindOutput("missing"))
}

func TestAutoConnectOutputsFilters(t *testing.T) {
	c := &Config{Outputs: []OutputConfig{
		{PortName: "A", AutoConnect: true},
		{PortName: "B", AutoConnect: false},
	}}
	got := c.AutoConnectOutputs()
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].PortName)
}
