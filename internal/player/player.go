// Package player implements the external Sample Player sink described in
// spec.md §6 ("an external SamplePlayer interface is assumed"): the
// scheduler and engine depend only on the SamplePlayer interface, never
// on MIDI directly. MIDISamplePlayer is the one concrete implementation
// this module ships, grounded on the teacher's sequencer/manager.go
// midiOutputLoop/getSender (lazy per-port gomidi.SendTo senders, NoteOn
// followed by a delayed NoteOff for a one-shot trigger).
package player

import (
	"fmt"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/go-drumseq/drumseq/internal/clock"
	"github.com/go-drumseq/drumseq/internal/registry"
	"github.com/go-drumseq/drumseq/internal/seqlog"
)

// SamplePlayer is the external sink described in spec.md §6: it plays one
// sample at a specific clock time with a velocity. Errors are captured by
// the scheduler as performance events, not propagated.
type SamplePlayer interface {
	Play(handle registry.Handle, when float64, velocity float32, trackID string) error
}

// TrackRoute says which MIDI output, channel, and note a track's triggers
// translate to.
type TrackRoute struct {
	PortName string
	Channel  uint8 // 1-16
	Note     uint8
}

// MIDISamplePlayer translates sample triggers into MIDI NoteOn/NoteOff
// pairs on a per-track output route.
type MIDISamplePlayer struct {
	clk clock.Clock

	mu     sync.RWMutex
	routes map[string]TrackRoute

	sendersMu sync.RWMutex
	senders   map[string]func(gomidi.Message) error

	noteOffDelay time.Duration
}

// NewMIDISamplePlayer constructs a player anchored to clk for converting
// scheduler-domain trigger times into wall-clock delays.
func NewMIDISamplePlayer(clk clock.Clock) *MIDISamplePlayer {
	return &MIDISamplePlayer{
		clk:          clk,
		routes:       make(map[string]TrackRoute),
		senders:      make(map[string]func(gomidi.Message) error),
		noteOffDelay: 30 * time.Millisecond,
	}
}

// SetRoute assigns the MIDI destination for a track's triggers.
func (p *MIDISamplePlayer) SetRoute(trackID string, route TrackRoute) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[trackID] = route
}

// getSender lazily opens (and caches) a gomidi output port by name.
func (p *MIDISamplePlayer) getSender(portName string) (func(gomidi.Message) error, error) {
	p.sendersMu.RLock()
	if s, ok := p.senders[portName]; ok {
		p.sendersMu.RUnlock()
		return s, nil
	}
	p.sendersMu.RUnlock()

	p.sendersMu.Lock()
	defer p.sendersMu.Unlock()
	if s, ok := p.senders[portName]; ok {
		return s, nil
	}

	for _, port := range gomidi.GetOutPorts() {
		if port.String() == portName {
			sender, err := gomidi.SendTo(port)
			if err != nil {
				return nil, fmt.Errorf("player: open port %q: %w", portName, err)
			}
			p.senders[portName] = sender
			return sender, nil
		}
	}
	return nil, fmt.Errorf("player: MIDI output port %q not found", portName)
}

// Play implements SamplePlayer. handle is accepted for interface
// conformance with the spec's contract but is not itself translatable to
// MIDI (it names an audio sample, not a note) — the route supplies the
// note number. A real sample-accurate engine would instead decode and
// mix handle's audio; that is explicitly out of scope (spec.md §1).
func (p *MIDISamplePlayer) Play(handle registry.Handle, when float64, velocity float32, trackID string) error {
	p.mu.RLock()
	route, ok := p.routes[trackID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("player: no MIDI route for track %s", trackID)
	}

	sender, err := p.getSender(route.PortName)
	if err != nil {
		return err
	}

	vel := uint8(clamp01(velocity) * 127)
	channel := route.Channel - 1

	fire := func() {
		if err := sender(gomidi.NoteOn(channel, route.Note, vel)); err != nil {
			seqlog.LogEvery(20, "player", "note-on send failed: %v", err)
			return
		}
		time.AfterFunc(p.noteOffDelay, func() {
			if err := sender(gomidi.NoteOff(channel, route.Note)); err != nil {
				seqlog.LogEvery(20, "player", "note-off send failed: %v", err)
			}
		})
	}

	delay := when - p.clk.Now()
	if delay <= 0 {
		fire()
	} else {
		time.AfterFunc(time.Duration(delay*float64(time.Second)), fire)
	}
	return nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
