package types

// PublicUser is the user snapshot broadcast to room members.
type PublicUser struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Seq   *SeqState  `json:"seq"`
	Synth SynthState `json:"synth"`
}
