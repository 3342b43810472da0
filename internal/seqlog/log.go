// Package seqlog is a small category-tagged file logger used by the
// scheduler, engine, event bus, and MIDI player to record runtime sink
// errors, drift events, and recovered callback panics (spec.md §7)
// without pulling in a logging framework the rest of the stack doesn't
// use. Skipped triggers are counted by the engine, not logged here.
package seqlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
)

// Enable starts logging to ~/.config/drumseq/seq.log.
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	homeDir, _ := os.UserHomeDir()
	logPath := homeDir + "/.config/drumseq/seq.log"

	os.MkdirAll(homeDir+"/.config/drumseq", 0755)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, "seqlog", "=== logging started ===")
	file.Sync()

	return nil
}

// Disable stops logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Log writes a message to the log, tagged by category.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || file == nil {
		return
	}

	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, category, msg)
	file.Sync()
}

// counters backs LogEvery's per-key call count.
var (
	counterMu sync.Mutex
	counters  = make(map[string]int)
)

// LogEvery logs only every N calls of a given category+format, so a
// runtime sink error that repeats every tick doesn't flood the log
// (spec.md §7: "logged once per kind per period").
func LogEvery(n int, category, format string, args ...any) {
	counterMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	counterMu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
