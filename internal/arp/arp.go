// Package arp expands the notes held on one step into an ordered run of
// sub-note events. Generation is pure: no clocks, no sockets, just arithmetic
// over the inputs.
package arp

import (
	"math"
	"math/rand"
	"sort"

	"github.com/beatcord/beatcord/pkg/types"
)

// Pattern names an arpeggio ordering mode.
type Pattern string

const (
	PatternUp       Pattern = "up"
	PatternDown     Pattern = "down"
	PatternUpDown   Pattern = "up-down"
	PatternDownUp   Pattern = "down-up"
	PatternConverge Pattern = "converge"
	PatternDiverge  Pattern = "diverge"
	PatternRandom   Pattern = "random"
)

// Rate is the sub-division rate relative to a beat.
type Rate string

const (
	Rate4   Rate = "1/4"
	Rate8   Rate = "1/8"
	Rate8T  Rate = "1/8t"
	Rate16  Rate = "1/16"
	Rate16T Rate = "1/16t"
	Rate32  Rate = "1/32"
)

var rateDivisors = map[Rate]float64{
	Rate4:   1,
	Rate8:   2,
	Rate8T:  3,
	Rate16:  4,
	Rate16T: 6,
	Rate32:  8,
}

// Config carries the arpeggiator controls.
type Config struct {
	Pattern Pattern
	Rate    Rate
	// Number of octaves to span (1-4).
	OctaveRange int
	// Note gate as a fraction of a sub-step (0.1-1.0).
	Gate float64
	// Swing amount (0-0.5); every other sub-note is pushed forward.
	Swing float64
}

// Event is one sub-note within a step.
type Event struct {
	Midi     int
	Velocity int
	// Duration of this sub-note in seconds.
	Duration float64
	// Time offset from the start of the step in seconds.
	Offset float64
}

// Generate produces the arpeggiated events for a single step. Events never
// cross the step boundary.
func Generate(notes []types.NoteData, cfg Config, bpm float64, subdiv int) []Event {
	if len(notes) == 0 || bpm <= 0 || subdiv <= 0 {
		return nil
	}

	stepDur := types.StepDuration(bpm, subdiv)
	beatDur := 60 / bpm
	div, ok := rateDivisors[cfg.Rate]
	if !ok {
		div = 4
	}
	subStepDur := beatDur / div

	subSteps := int(stepDur / subStepDur)
	if subSteps < 1 {
		subSteps = 1
	}

	midis := make([]int, len(notes))
	velSum := 0
	for i, n := range notes {
		midis[i] = n.Midi
		velSum += n.Velocity
	}
	avgVel := int(math.Round(float64(velSum) / float64(len(notes))))

	ordered := applyPattern(expandOctaves(midis, cfg.OctaveRange), cfg.Pattern)
	if len(ordered) == 0 {
		return nil
	}

	events := make([]Event, 0, subSteps)
	for i := 0; i < subSteps; i++ {
		offset := float64(i) * subStepDur
		if i%2 == 1 {
			offset += cfg.Swing * subStepDur
		}
		if offset >= stepDur {
			break
		}
		duration := subStepDur * cfg.Gate
		if duration > stepDur-offset {
			duration = stepDur - offset
		}
		events = append(events, Event{
			Midi:     ordered[i%len(ordered)],
			Velocity: avgVel,
			Duration: duration,
			Offset:   offset,
		})
	}
	return events
}

// expandOctaves repeats the notes shifted up an octave at a time, dropping
// anything past MIDI 127.
func expandOctaves(midis []int, octaveRange int) []int {
	if octaveRange <= 1 {
		return midis
	}
	expanded := make([]int, 0, len(midis)*octaveRange)
	for oct := 0; oct < octaveRange; oct++ {
		for _, m := range midis {
			if shifted := m + oct*12; shifted <= 127 {
				expanded = append(expanded, shifted)
			}
		}
	}
	return expanded
}

func applyPattern(midis []int, pattern Pattern) []int {
	switch pattern {
	case PatternDown:
		return orderDown(midis)
	case PatternUpDown:
		return orderUpDown(midis)
	case PatternDownUp:
		return orderDownUp(midis)
	case PatternConverge:
		return orderConverge(midis)
	case PatternDiverge:
		return orderDiverge(midis)
	case PatternRandom:
		return orderRandom(midis)
	default:
		return orderUp(midis)
	}
}

func orderUp(midis []int) []int {
	out := append([]int(nil), midis...)
	sort.Ints(out)
	return out
}

func orderDown(midis []int) []int {
	out := orderUp(midis)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// orderUpDown climbs then descends without repeating the extremes.
func orderUpDown(midis []int) []int {
	up := orderUp(midis)
	if len(up) <= 1 {
		return up
	}
	out := append([]int(nil), up...)
	for i := len(up) - 2; i >= 1; i-- {
		out = append(out, up[i])
	}
	return out
}

func orderDownUp(midis []int) []int {
	down := orderDown(midis)
	if len(down) <= 1 {
		return down
	}
	out := append([]int(nil), down...)
	for i := len(down) - 2; i >= 1; i-- {
		out = append(out, down[i])
	}
	return out
}

// orderConverge alternates from the outside in: lowest, highest, next-lowest…
func orderConverge(midis []int) []int {
	sorted := orderUp(midis)
	out := make([]int, 0, len(sorted))
	lo, hi := 0, len(sorted)-1
	for lo <= hi {
		out = append(out, sorted[lo])
		if lo != hi {
			out = append(out, sorted[hi])
		}
		lo++
		hi--
	}
	return out
}

// orderDiverge starts at the middle and fans outward.
func orderDiverge(midis []int) []int {
	sorted := orderUp(midis)
	out := make([]int, 0, len(sorted))
	mid := len(sorted) / 2
	lo, hi := mid, mid
	goLo := true
	for lo >= 0 || hi < len(sorted) {
		if goLo && lo >= 0 {
			out = append(out, sorted[lo])
			lo--
		} else if hi < len(sorted) {
			out = append(out, sorted[hi])
			hi++
		}
		goLo = !goLo
	}
	return out
}

func orderRandom(midis []int) []int {
	out := append([]int(nil), midis...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
