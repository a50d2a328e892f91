// Package sched turns a coarse, jittery poll timer into sample-accurate
// trigger instants. The loop always works a lookahead window ahead of the
// audio clock and hands the sink exact future instants, never "now"; as long
// as the poll interval stays below the lookahead window, no step can be
// missed or fired late.
package sched

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beatcord/beatcord/internal/arp"
	"github.com/beatcord/beatcord/internal/audio"
	"github.com/beatcord/beatcord/pkg/types"
)

const (
	// DefaultLookahead is how far ahead trigger instants are computed.
	DefaultLookahead = 100 * time.Millisecond
	// DefaultPollInterval is how often the window is drained. Must stay
	// below the lookahead.
	DefaultPollInterval = 25 * time.Millisecond
)

// Source provides the live pattern and transport state. It is re-read on
// every iteration so tempo and pattern edits take effect on the next step.
type Source interface {
	Seq() types.SeqState
	Settings() types.GlobalSettings
	Synth() types.SynthState
	// ArpConfig reports false when the arpeggiator is off.
	ArpConfig() (arp.Config, bool)
}

// Options tune the scheduler and attach its listeners.
type Options struct {
	Lookahead    time.Duration
	PollInterval time.Duration
	// OnTick fires approximately when the step actually sounds, carrying the
	// step index and whether it holds audible notes. This is the producer of
	// the outbound step_tick traffic.
	OnTick func(step int, hasNotes bool)
	// OnStep tracks the display pointer; it receives -1 on stop.
	OnStep func(step int)
	Logger *zap.Logger
}

// cursor is the scheduler's position: the clock instant of the next
// unscheduled step and its index. Owned by the run goroutine; reset on start.
type cursor struct {
	next float64
	step int
}

type Scheduler struct {
	clock     audio.Clock
	sink      audio.Sink
	src       Source
	lookahead float64
	poll      time.Duration
	onTick    func(step int, hasNotes bool)
	onStep    func(step int)
	log       *zap.Logger

	// afterFunc is swappable so tests can observe tick delays directly.
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func New(clock audio.Clock, sink audio.Sink, src Source, opts Options) *Scheduler {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		clock:     clock,
		sink:      sink,
		src:       src,
		lookahead: opts.Lookahead.Seconds(),
		poll:      opts.PollInterval,
		onTick:    opts.OnTick,
		onStep:    opts.OnStep,
		log:       log,
		afterFunc: time.AfterFunc,
	}
}

// Start begins the loop from step 0 at the current clock time. Starting while
// already running stops the previous run first.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.running = true
	s.stop = make(chan struct{})
	s.log.Debug("scheduler started")
	go s.run(s.stop, s.clock.Now())
}

// Stop cancels the pending re-arm and clears the step display pointer.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	close(s.stop)
	s.running = false
	s.log.Debug("scheduler stopped")
	if s.onStep != nil {
		s.onStep(-1)
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(stop chan struct{}, startAt float64) {
	cur := cursor{next: startAt, step: 0}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.drain(&cur, stop)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.drain(&cur, stop)
		}
	}
}

// drain schedules every step whose trigger instant falls inside the lookahead
// window, then leaves the cursor pointing at the first step beyond it.
func (s *Scheduler) drain(c *cursor, stop chan struct{}) {
	now := s.clock.Now()
	for c.next < now+s.lookahead {
		seq := s.src.Seq()
		settings := s.src.Settings()

		bpm := settings.BPM
		if bpm <= 0 {
			bpm = seq.BPM
		}
		subdiv := seq.Subdiv
		if subdiv <= 0 {
			subdiv = 4
		}
		stepCount := settings.StepCount
		if stepCount <= 0 {
			stepCount = seq.StepCount
		}
		if bpm <= 0 || stepCount <= 0 {
			return
		}

		var step types.StepData
		if c.step < len(seq.Steps) {
			step = seq.Steps[c.step]
		}

		if step.HasNotes() {
			timbre := s.src.Synth()
			if cfg, on := s.src.ArpConfig(); on {
				for _, ev := range arp.Generate(step.Notes, cfg, bpm, subdiv) {
					s.sink.PlayNote(ev.Midi, ev.Velocity, ev.Duration, timbre, c.next+ev.Offset)
				}
			} else {
				s.sink.PlayStep(step, timbre, c.next, bpm, subdiv)
			}
		}

		// Delay the tick so it reaches listeners roughly when the step
		// sounds, not when it was computed.
		delay := time.Duration((c.next - now) * float64(time.Second))
		if delay < 0 {
			delay = 0
		}
		idx, audible := c.step, step.HasNotes()
		s.afterFunc(delay, func() {
			select {
			case <-stop:
				return
			default:
			}
			if s.onStep != nil {
				s.onStep(idx)
			}
			if s.onTick != nil {
				s.onTick(idx, audible)
			}
		})

		c.next += types.StepDuration(bpm, subdiv)
		c.step = (c.step + 1) % stepCount
	}
}
