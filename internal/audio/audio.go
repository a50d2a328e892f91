// Package audio defines the contract between the sequencing core and the
// synthesis graph. The graph itself (oscillators, filters, effects) lives
// outside this module and is consumed as an opaque sink.
package audio

import "github.com/beatcord/beatcord/pkg/types"

// Clock reads the audio hardware clock in seconds. Trigger instants handed to
// the Sink are values of this clock, never wall time.
type Clock interface {
	Now() float64
}

// Sink consumes note events scheduled at exact clock instants.
type Sink interface {
	// PlayNote triggers a single note at the given clock instant.
	PlayNote(midi, velocity int, duration float64, timbre types.SynthState, at float64)
	// PlayStep triggers every note on a step at the given clock instant,
	// deriving per-note durations from bpm and subdiv.
	PlayStep(step types.StepData, timbre types.SynthState, at float64, bpm float64, subdiv int)
}
