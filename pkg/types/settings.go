package types

// GlobalSettings is the per-room transport and tuning state shared by every
// member. One instance exists per room, mutated only via patches.
type GlobalSettings struct {
	Playing   bool    `json:"playing"`
	BPM       float64 `json:"bpm"`
	StepCount int     `json:"stepCount"` // 8, 16 or 32
	RootNote  int     `json:"rootNote"`  // 0-11, index into note names
	ScaleType string  `json:"scaleType"`
	// Master volume 0-1.
	MasterVolume float64 `json:"masterVolume"`
}

// GlobalSettingsPatch is a partial settings update. Nil fields leave the
// target untouched.
type GlobalSettingsPatch struct {
	Playing      *bool    `json:"playing,omitempty"`
	BPM          *float64 `json:"bpm,omitempty"`
	StepCount    *int     `json:"stepCount,omitempty"`
	RootNote     *int     `json:"rootNote,omitempty"`
	ScaleType    *string  `json:"scaleType,omitempty"`
	MasterVolume *float64 `json:"masterVolume,omitempty"`
}

// Apply merges the patch into dst, one field at a time.
func (p GlobalSettingsPatch) Apply(dst *GlobalSettings) {
	if p.Playing != nil {
		dst.Playing = *p.Playing
	}
	if p.BPM != nil {
		dst.BPM = *p.BPM
	}
	if p.StepCount != nil {
		dst.StepCount = *p.StepCount
	}
	if p.RootNote != nil {
		dst.RootNote = *p.RootNote
	}
	if p.ScaleType != nil {
		dst.ScaleType = *p.ScaleType
	}
	if p.MasterVolume != nil {
		dst.MasterVolume = *p.MasterVolume
	}
}
