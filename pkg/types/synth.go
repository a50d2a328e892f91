package types

// Waveform names the supported oscillator shapes.
type Waveform string

const (
	WaveSawtooth Waveform = "sawtooth"
	WaveSquare   Waveform = "square"
	WaveSine     Waveform = "sine"
	WaveTriangle Waveform = "triangle"
)

// SynthState is the full voice configuration for one user.
type SynthState struct {
	Waveform   Waveform `json:"waveform"`
	Attack     float64  `json:"attack"`
	Decay      float64  `json:"decay"`
	Sustain    float64  `json:"sustain"`
	Release    float64  `json:"release"`
	FilterFreq float64  `json:"filterFreq"`
	FilterQ    float64  `json:"filterQ"`
	Volume     float64  `json:"volume"`
	Color      string   `json:"color"`
	// Delay time in seconds (0-1).
	DelayTime float64 `json:"delayTime"`
	// Delay feedback amount (0-0.9).
	DelayFeedback float64 `json:"delayFeedback"`
	// Delay wet/dry mix (0 = dry, 1 = wet).
	DelayMix float64 `json:"delayMix"`
	// Reverb wet/dry mix (0 = dry, 1 = wet).
	ReverbMix float64 `json:"reverbMix"`
	// Reverb impulse-response decay in seconds (0.1-5).
	ReverbDecay float64 `json:"reverbDecay"`
}

// SynthPatch is a partial synth update. Nil fields leave the target untouched.
type SynthPatch struct {
	Waveform      *Waveform `json:"waveform,omitempty"`
	Attack        *float64  `json:"attack,omitempty"`
	Decay         *float64  `json:"decay,omitempty"`
	Sustain       *float64  `json:"sustain,omitempty"`
	Release       *float64  `json:"release,omitempty"`
	FilterFreq    *float64  `json:"filterFreq,omitempty"`
	FilterQ       *float64  `json:"filterQ,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	Color         *string   `json:"color,omitempty"`
	DelayTime     *float64  `json:"delayTime,omitempty"`
	DelayFeedback *float64  `json:"delayFeedback,omitempty"`
	DelayMix      *float64  `json:"delayMix,omitempty"`
	ReverbMix     *float64  `json:"reverbMix,omitempty"`
	ReverbDecay   *float64  `json:"reverbDecay,omitempty"`
}

// Apply merges the patch into dst, one field at a time.
func (p SynthPatch) Apply(dst *SynthState) {
	if p.Waveform != nil {
		dst.Waveform = *p.Waveform
	}
	if p.Attack != nil {
		dst.Attack = *p.Attack
	}
	if p.Decay != nil {
		dst.Decay = *p.Decay
	}
	if p.Sustain != nil {
		dst.Sustain = *p.Sustain
	}
	if p.Release != nil {
		dst.Release = *p.Release
	}
	if p.FilterFreq != nil {
		dst.FilterFreq = *p.FilterFreq
	}
	if p.FilterQ != nil {
		dst.FilterQ = *p.FilterQ
	}
	if p.Volume != nil {
		dst.Volume = *p.Volume
	}
	if p.Color != nil {
		dst.Color = *p.Color
	}
	if p.DelayTime != nil {
		dst.DelayTime = *p.DelayTime
	}
	if p.DelayFeedback != nil {
		dst.DelayFeedback = *p.DelayFeedback
	}
	if p.DelayMix != nil {
		dst.DelayMix = *p.DelayMix
	}
	if p.ReverbMix != nil {
		dst.ReverbMix = *p.ReverbMix
	}
	if p.ReverbDecay != nil {
		dst.ReverbDecay = *p.ReverbDecay
	}
}
