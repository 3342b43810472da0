package seqlog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogIsNoopWhenDisabled(t *testing.T) {
	Disable()
	assert.NotPanics(t, func() { Log("test", "hello %d", 1) })
}

func TestEnableWritesToFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, Enable())
	defer Disable()

	Log("test", "marker-value")

	data, err := os.ReadFile(home + "/.config/drumseq/seq.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "marker-value")
}

func TestLogEveryThrottles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, Enable())
	defer Disable()

	for i := 0; i < 5; i++ {
		LogEvery(3, "throttle-test", "tick")
	}

	data, err := os.ReadFile(home + "/.config/drumseq/seq.log")
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(string(data), "tick (every 3"))
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
		}
	}
	return count
}
