package types

// Opening describes how a piece begins.
type Opening struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

// SentencePattern describes sentence length and cadence.
type SentencePattern struct {
	AvgLength   int     `json:"avg_length,omitempty"`
	ShortRatio  float64 `json:"short_ratio,omitempty"`
	Description string  `json:"description,omitempty"`
}

// ParagraphRhythm describes paragraph length variation.
type ParagraphRhythm struct {
	Variation          string `json:"variation,omitempty"`
	AvgParagraphLength int    `json:"avg_paragraph_length,omitempty"`
	Description        string `json:"description,omitempty"`
}

// Expressions captures vocabulary habits.
type Expressions struct {
	HighFreqWords     []string `json:"high_freq_words,omitempty"`
	TransitionPhrases []string `json:"transition_phrases,omitempty"`
	AvoidWords        []string `json:"avoid_words,omitempty"`
}

// Tone describes the voice of a piece.
type Tone struct {
	Type        string  `json:"type"`
	Formality   float64 `json:"formality,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Ending describes how a piece closes.
type Ending struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

// StyleProfile is the six-dimension analysis of a writing sample or channel.
// A nil dimension means "not provided at this level".
type StyleProfile struct {
	Opening           *Opening         `json:"opening_style,omitempty"`
	SentencePattern   *SentencePattern `json:"sentence_pattern,omitempty"`
	ParagraphRhythm   *ParagraphRhythm `json:"paragraph_rhythm,omitempty"`
	Expressions       *Expressions     `json:"expressions,omitempty"`
	Tone              *Tone            `json:"tone,omitempty"`
	Ending            *Ending          `json:"ending_style,omitempty"`
	StructuralLogic   []string         `json:"structural_logic,omitempty"`
	WritingGuidelines []string         `json:"writing_guidelines,omitempty"`
}

// IsEmpty reports whether the profile provides no field at all.
func (p *StyleProfile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Opening == nil && p.SentencePattern == nil && p.ParagraphRhythm == nil &&
		p.Expressions == nil && p.Tone == nil && p.Ending == nil &&
		len(p.StructuralLogic) == 0 && len(p.WritingGuidelines) == 0
}

// Clone returns a deep copy of the profile.
func (p *StyleProfile) Clone() *StyleProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Opening != nil {
		o := *p.Opening
		c.Opening = &o
	}
	if p.SentencePattern != nil {
		sp := *p.SentencePattern
		c.SentencePattern = &sp
	}
	if p.ParagraphRhythm != nil {
		r := *p.ParagraphRhythm
		c.ParagraphRhythm = &r
	}
	if p.Expressions != nil {
		c.Expressions = &Expressions{
			HighFreqWords:     CloneStrings(p.Expressions.HighFreqWords),
			TransitionPhrases: CloneStrings(p.Expressions.TransitionPhrases),
			AvoidWords:        CloneStrings(p.Expressions.AvoidWords),
		}
	}
	if p.Tone != nil {
		t := *p.Tone
		c.Tone = &t
	}
	if p.Ending != nil {
		e := *p.Ending
		c.Ending = &e
	}
	c.StructuralLogic = CloneStrings(p.StructuralLogic)
	c.WritingGuidelines = CloneStrings(p.WritingGuidelines)
	return &c
}

// OverrideText is a user-edited descriptor for one style dimension.
type OverrideText struct {
	Value        string `json:"value"`
	IsCustomized bool   `json:"is_customized"`
}

// Active reports whether the override should win over lower levels.
func (o *OverrideText) Active() bool {
	return o != nil && o.IsCustomized
}

// OverrideList is a user-edited list field.
type OverrideList struct {
	Value        []string `json:"value"`
	IsCustomized bool     `json:"is_customized"`
}

// Active reports whether the override should win over lower levels.
func (o *OverrideList) Active() bool {
	return o != nil && o.IsCustomized
}

// UserStyleOverride holds the editor's per-task style adjustments.
type UserStyleOverride struct {
	CustomRequirement string        `json:"custom_requirement,omitempty"`
	StructuralLogic   *OverrideList `json:"structural_logic,omitempty"`
	WritingGuidelines *OverrideList `json:"writing_guidelines,omitempty"`
	Opening           *OverrideText `json:"opening_style,omitempty"`
	SentencePattern   *OverrideText `json:"sentence_pattern,omitempty"`
	ParagraphRhythm   *OverrideText `json:"paragraph_rhythm,omitempty"`
	Expressions       *OverrideList `json:"expressions,omitempty"`
	Tone              *OverrideText `json:"tone,omitempty"`
	Ending            *OverrideText `json:"ending_style,omitempty"`
}

// Clone returns a deep copy of the override.
func (o *UserStyleOverride) Clone() *UserStyleOverride {
	if o == nil {
		return nil
	}
	c := *o
	cloneText := func(t *OverrideText) *OverrideText {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	cloneList := func(l *OverrideList) *OverrideList {
		if l == nil {
			return nil
		}
		return &OverrideList{Value: CloneStrings(l.Value), IsCustomized: l.IsCustomized}
	}
	c.StructuralLogic = cloneList(o.StructuralLogic)
	c.WritingGuidelines = cloneList(o.WritingGuidelines)
	c.Expressions = cloneList(o.Expressions)
	c.Opening = cloneText(o.Opening)
	c.SentencePattern = cloneText(o.SentencePattern)
	c.ParagraphRhythm = cloneText(o.ParagraphRhythm)
	c.Tone = cloneText(o.Tone)
	c.Ending = cloneText(o.Ending)
	return &c
}

// StyleDimensions holds one resolved descriptor per dimension.
type StyleDimensions struct {
	Opening         string `json:"opening_style"`
	SentencePattern string `json:"sentence_pattern"`
	ParagraphRhythm string `json:"paragraph_rhythm"`
	Expressions     string `json:"expressions"`
	Tone            string `json:"tone"`
	Ending          string `json:"ending_style"`
}

// EffectiveStyle is the resolved style directive for one step execution.
// It is never stored on its own; step outputs keep a snapshot copy.
type EffectiveStyle struct {
	StructuralSequence  []string          `json:"structural_sequence"`
	Dimensions          StyleDimensions   `json:"dimensions"`
	PreferredVocabulary []string          `json:"preferred_vocabulary"`
	AvoidedVocabulary   []string          `json:"avoided_vocabulary"`
	WritingGuidelines   []string          `json:"writing_guidelines,omitempty"`
	CustomRequirement   string            `json:"custom_requirement,omitempty"`
	SourceLabel         string            `json:"source_label"`
	FieldSources        map[string]string `json:"field_sources"`
}

// Clone returns a deep copy of the directive.
func (e *EffectiveStyle) Clone() *EffectiveStyle {
	if e == nil {
		return nil
	}
	c := *e
	c.StructuralSequence = CloneStrings(e.StructuralSequence)
	c.PreferredVocabulary = CloneStrings(e.PreferredVocabulary)
	c.AvoidedVocabulary = CloneStrings(e.AvoidedVocabulary)
	c.WritingGuidelines = CloneStrings(e.WritingGuidelines)
	c.FieldSources = cloneStringMap(e.FieldSources)
	return &c
}
