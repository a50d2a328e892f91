package types

import "math/rand"

var userColors = []string{
	"#ff6b6b", "#ffd93d", "#6bcb77", "#4d96ff",
	"#ff6bff", "#ff9f43", "#00d2d3", "#ee5a24",
}

// RandomColor picks a display color for a new user.
func RandomColor() string {
	return userColors[rand.Intn(len(userColors))]
}

// MakeSteps builds an empty step grid of the given length.
func MakeSteps(count int) []StepData {
	steps := make([]StepData, count)
	for i := range steps {
		steps[i].Notes = []NoteData{}
	}
	return steps
}

func DefaultSeqState() SeqState {
	return SeqState{
		Steps:     MakeSteps(16),
		StepCount: 16,
		BPM:       120,
		Subdiv:    4,
		Playing:   false,
	}
}

func DefaultSynthState() SynthState {
	return SynthState{
		Waveform:   WaveSawtooth,
		Attack:     0.005,
		Decay:      0.12,
		Sustain:    0.5,
		Release:    0.4,
		FilterFreq: 3000,
		FilterQ:    1.5,
		Volume:     0.7,
		Color:      RandomColor(),
	}
}

func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		Playing:      false,
		BPM:          120,
		StepCount:    16,
		RootNote:     0,
		ScaleType:    "chromatic",
		MasterVolume: 0.8,
	}
}
