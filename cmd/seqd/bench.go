package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drumseq/drumseq/internal/clock"
	"github.com/go-drumseq/drumseq/internal/pattern"
	"github.com/go-drumseq/drumseq/internal/scheduler"
	"github.com/go-drumseq/drumseq/internal/tick"
)

var (
	benchBPM        int
	benchSwing      float64
	benchResolution int
	benchDuration   time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the Audio Scheduler standalone against a real clock and report timing stats",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchBPM, "bpm", 120, "tempo")
	benchCmd.Flags().Float64Var(&benchSwing, "swing", 0, "swing amount [0,100]")
	benchCmd.Flags().IntVar(&benchResolution, "resolution", 16, "step resolution (8, 16, 32, 64)")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 5*time.Second, "how long to run")
}

func runBench(cmd *cobra.Command, args []string) error {
	clk := clock.New()
	ticks := tick.NewTickerSource(scheduler.DefaultLookahead)
	rnd := mathRandSource{r: rand.New(rand.NewSource(1))}

	sched := scheduler.New(clk, rnd, ticks, benchBPM, benchSwing, benchResolution)
	sched.SetStepSink(func(step int, when float64) {
		sched.ScheduleNote(when, nil, 0.8, pattern.Randomization{}, "bench")
	})
	sched.SetNoteSink(func(when float64, handle any, velocity float32, trackID string) error {
		return nil
	})

	sched.Start()
	time.Sleep(benchDuration)
	sched.Stop()

	stats := sched.Stats()
	fmt.Printf("scheduled=%d avg_latency=%s max_latency=%s sink_errors=%d step_duration=%.5fs\n",
		stats.TotalScheduled, stats.AverageLatency, stats.MaxLatency, stats.SinkErrors, sched.StepDuration())
	return nil
}
