package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/go-drumseq/drumseq/internal/clock"
	"github.com/go-drumseq/drumseq/internal/config"
	"github.com/go-drumseq/drumseq/internal/engine"
	"github.com/go-drumseq/drumseq/internal/monitor"
	"github.com/go-drumseq/drumseq/internal/pattern"
	"github.com/go-drumseq/drumseq/internal/player"
	"github.com/go-drumseq/drumseq/internal/registry"
	"github.com/go-drumseq/drumseq/internal/scheduler"
	"github.com/go-drumseq/drumseq/internal/seqlog"
	"github.com/go-drumseq/drumseq/internal/tick"
)

var (
	runPacksDir string
	runTracks   int
	runDebug    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sequencer engine with a fresh pattern and the default sample pack",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPacksDir, "packs-dir", "packs", "directory containing sample pack manifests")
	runCmd.Flags().IntVar(&runTracks, "tracks", 8, "number of tracks in the starting pattern")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "enable seqlog debug output")
}

// mathRandSource adapts math/rand to the scheduler.RandSource interface.
type mathRandSource struct{ r *rand.Rand }

func (m mathRandSource) Float64() float64 { return m.r.Float64() }

// alwaysRunningContext is a stand-in AudioContext for environments with
// no external audio graph to suspend/resume (spec.md §1 explicitly
// excludes audio output from this module's scope).
type alwaysRunningContext struct{}

func (alwaysRunningContext) Suspended() bool { return false }
func (alwaysRunningContext) Resume() error   { return nil }

var defaultTrackSamples = []string{
	"gm-kick", "gm-snare", "gm-closed-hat", "gm-open-hat",
	"gm-crash", "gm-ride", "gm-clap", "gm-rimshot",
}

func midiNoteFromTags(tags []string) (uint8, bool) {
	for _, t := range tags {
		if n, ok := strings.CutPrefix(t, "midi-note:"); ok {
			v, err := strconv.Atoi(n)
			if err == nil && v >= 0 && v <= 127 {
				return uint8(v), true
			}
		}
	}
	return 0, false
}

func runRun(cmd *cobra.Command, args []string) error {
	if runDebug {
		if err := seqlog.Enable(); err != nil {
			return fmt.Errorf("enable debug log: %w", err)
		}
		defer seqlog.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	patterns := pattern.NewManager()
	p, err := patterns.CreatePattern("Pattern 1", runTracks, 16)
	if err != nil {
		return fmt.Errorf("create pattern: %w", err)
	}
	if _, err := patterns.LoadPattern(p.ID); err != nil {
		return fmt.Errorf("load pattern: %w", err)
	}

	reg := registry.New()
	if err := reg.LoadPack(runPacksDir, cfg.DefaultPack); err != nil {
		return fmt.Errorf("load sample pack %q: %w", cfg.DefaultPack, err)
	}

	clk := clock.New()
	midiPlayer := player.NewMIDISamplePlayer(clk)

	outputs := cfg.AutoConnectOutputs()
	portName := ""
	channel := uint8(1)
	if len(outputs) > 0 {
		portName = outputs[0].PortName
		if outputs[0].Channel > 0 {
			channel = uint8(outputs[0].Channel)
		}
	}

	for i, t := range p.Tracks {
		sampleID := ""
		if i < len(defaultTrackSamples) {
			sampleID = defaultTrackSamples[i]
		}
		h, ok := reg.Get(sampleID)
		if !ok {
			continue
		}
		if err := patterns.AssignSample(t.ID, h.ID); err != nil {
			continue
		}
		note, ok := midiNoteFromTags(h.Tags)
		if !ok {
			continue
		}
		midiPlayer.SetRoute(t.ID, player.TrackRoute{PortName: portName, Channel: channel, Note: note})
	}

	ticks := tick.NewTickerSource(scheduler.DefaultLookahead)
	rnd := mathRandSource{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

	eng := engine.New()
	if err := eng.Initialize(alwaysRunningContext{}, engine.Deps{
		Patterns: patterns,
		Registry: reg,
		Player:   midiPlayer,
		Clock:    clk,
		Rand:     rnd,
		Ticks:    ticks,
	}); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer eng.Destroy()

	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	model := monitor.NewModel(eng)
	program := tea.NewProgram(model)
	_, err = program.Run()
	return err
}
