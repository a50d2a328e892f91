package types

// NoteData is a single note placed on a step.
type NoteData struct {
	// MIDI note number (24 = C1, 108 = C8)
	Midi int `json:"midi"`
	// Velocity 1-127
	Velocity int `json:"velocity"`
	// Note length as a fraction of a beat (0.05-1.0)
	Length float64 `json:"length"`
}

// StepData is one step in the sequencer grid.
type StepData struct {
	Notes []NoteData `json:"notes"`
}

// SetNote places a note on the step. A step never holds two notes with the
// same pitch, so an existing note at the same midi number is replaced.
func (s *StepData) SetNote(n NoteData) {
	for i, existing := range s.Notes {
		if existing.Midi == n.Midi {
			s.Notes[i] = n
			return
		}
	}
	s.Notes = append(s.Notes, n)
}

// ClearNote removes the note at the given pitch, if present.
func (s *StepData) ClearNote(midi int) {
	for i, n := range s.Notes {
		if n.Midi == midi {
			s.Notes = append(s.Notes[:i], s.Notes[i+1:]...)
			return
		}
	}
}

func (s StepData) HasNotes() bool { return len(s.Notes) > 0 }

// SeqState is the full sequencer state for one user.
type SeqState struct {
	Steps     []StepData `json:"steps"`
	StepCount int        `json:"stepCount"`
	BPM       float64    `json:"bpm"`
	// Subdivision: 1 = 1/4, 2 = 1/8, 4 = 1/16
	Subdiv  int  `json:"subdiv"`
	Playing bool `json:"playing"`
}

// StepDuration returns the length of one sequencer step in seconds.
func StepDuration(bpm float64, subdiv int) float64 {
	return (60 / bpm) / (float64(subdiv) / 4)
}
