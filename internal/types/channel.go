package types

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a content vertical with its own voice, rules and material pool.
type Channel struct {
	ID               uuid.UUID     `json:"id"`
	Slug             string        `json:"slug" validate:"required,max=50"`
	Name             string        `json:"name" validate:"required,max=100"`
	Description      string        `json:"description,omitempty"`
	TargetAudience   string        `json:"target_audience,omitempty"`
	BrandPersonality string        `json:"brand_personality,omitempty"`
	Role             string        `json:"role,omitempty"`
	WritingStyle     []string      `json:"writing_style,omitempty"`
	PreferredTone    []string      `json:"preferred_tone,omitempty"`
	ForbiddenTone    []string      `json:"forbidden_tone,omitempty"`
	MustDo           []string      `json:"must_do,omitempty"`
	MustNotDo        []string      `json:"must_not_do,omitempty"`
	BlockedPhrases   []string      `json:"blocked_phrases,omitempty"`
	MaterialTags     []string      `json:"material_tags,omitempty"`
	DefaultStyle     *StyleProfile `json:"default_style,omitempty"`
	IsActive         bool          `json:"is_active"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// StyleSample is one curator-supplied reference article.
type StyleSample struct {
	ID              uuid.UUID     `json:"id"`
	ChannelID       uuid.UUID     `json:"channel_id"`
	Title           string        `json:"title" validate:"required,max=200"`
	Content         string        `json:"content" validate:"required"`
	Source          string        `json:"source,omitempty"`
	CustomTags      []string      `json:"custom_tags,omitempty"`
	AISuggestedTags []string      `json:"ai_suggested_tags,omitempty"`
	Profile         *StyleProfile `json:"style_profile,omitempty"`
	IsAnalyzed      bool          `json:"is_analyzed"`
	WordCount       int           `json:"word_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Material types
const (
	MaterialReference  = "reference"
	MaterialCase       = "case"
	MaterialReflection = "reflection"
	MaterialFeedback   = "feedback"
	MaterialOther      = "other"
)

// Material is a retrievable snippet used to ground generated content.
// A nil ChannelID marks a global material usable by every channel.
type Material struct {
	ID            uuid.UUID  `json:"id"`
	ChannelID     *uuid.UUID `json:"channel_id,omitempty"`
	Content       string     `json:"content" validate:"required"`
	MaterialType  string     `json:"material_type" validate:"omitempty,oneof=reference case reflection feedback other"`
	Tags          []string   `json:"tags,omitempty"`
	Source        string     `json:"source,omitempty"`
	QualityWeight int        `json:"quality_weight" validate:"omitempty,min=1,max=5"`
	Embedding     []float32  `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// VisibleTo reports whether the material may be retrieved for channel.
func (m *Material) VisibleTo(channel uuid.UUID) bool {
	return m.ChannelID == nil || *m.ChannelID == channel
}

// ScoredMaterial is a retrieval hit with its similarity to the query.
type ScoredMaterial struct {
	Material
	Similarity float64 `json:"similarity"`
}

// Brand asset keys
const (
	AssetPersonalIntro     = "personal_intro"
	AssetBlockingWords     = "blocking_words"
	AssetCoreValues        = "core_values"
	AssetWritingPrinciples = "writing_principles"
)

// BrandAsset is a keyed piece of global brand material, usually markdown.
type BrandAsset struct {
	Key         string    `json:"asset_key" validate:"required,max=100"`
	Content     string    `json:"content" validate:"required"`
	ContentType string    `json:"content_type" validate:"omitempty,oneof=text json markdown yaml"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// MaterialFilter narrows material listings. A nil ChannelID lists every
// material; GlobalOnly restricts to materials without a channel.
type MaterialFilter struct {
	ChannelID  *uuid.UUID
	GlobalOnly bool
	Type       string
	Limit      int
	Offset     int
}
