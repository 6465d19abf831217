package style

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/prompts"
	"github.com/jonathan/article-agent/internal/schemas"
	"github.com/jonathan/article-agent/internal/types"
	rootschemas "github.com/jonathan/article-agent/schemas"
)

const (
	analysisTemperature = 0.3
	analysisMaxTokens   = 4000
	// analysisMaxChars bounds the sample text sent to the model.
	analysisMaxChars = 6000
)

// AnalysisError is returned when the model output cannot be turned into a profile.
type AnalysisError struct {
	SampleID string
	Message  string
	Cause    error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("style analysis of sample %s failed: %s: %v", e.SampleID, e.Message, e.Cause)
	}
	return fmt.Sprintf("style analysis of sample %s failed: %s", e.SampleID, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// analysisResponse is the model's answer shape.
type analysisResponse struct {
	Profile       json.RawMessage `json:"style_profile"`
	SuggestedTags []string        `json:"suggested_tags"`
}

// Analyzer produces six-dimension profiles for style samples.
type Analyzer struct {
	gen    llm.Generator
	logger *slog.Logger
	now    func() time.Time
}

// NewAnalyzer creates an analyzer backed by gen.
func NewAnalyzer(gen llm.Generator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gen: gen, logger: logger, now: time.Now}
}

// Analyze returns a copy of sample with Profile, AISuggestedTags and WordCount
// filled in. An already analyzed sample is returned unchanged unless force is set.
// The boolean result reports whether the model was called.
func (a *Analyzer) Analyze(ctx context.Context, sample *types.StyleSample, force bool) (*types.StyleSample, bool, error) {
	out := *sample
	out.WordCount = WordCount(sample.Content)
	if sample.IsAnalyzed && !sample.Profile.IsEmpty() && !force {
		return &out, false, nil
	}

	system, user, err := prompts.Pair("style.json", "analyze-sample", map[string]string{
		"Title":   sample.Title,
		"Content": llm.Truncate(sample.Content, analysisMaxChars),
	})
	if err != nil {
		return nil, false, err
	}

	start := a.now()
	raw, err := a.gen.Generate(ctx, llm.Request{
		System:          system,
		User:            user,
		Temperature:     analysisTemperature,
		MaxOutputTokens: analysisMaxTokens,
		Tier:            llm.TierStandard,
		JSON:            true,
	})
	if err != nil {
		return nil, true, err
	}

	profile, tags, err := ParseAnalysis(raw)
	if err != nil {
		return nil, true, &AnalysisError{SampleID: sample.ID.String(), Message: "invalid model output", Cause: err}
	}

	out.Profile = profile
	out.AISuggestedTags = tags
	out.IsAnalyzed = true
	out.UpdatedAt = a.now()
	a.logger.Info("style sample analyzed",
		"sample_id", sample.ID,
		"tags", len(tags),
		"duration_ms", a.now().Sub(start).Milliseconds())
	return &out, true, nil
}

// ParseAnalysis validates and decodes a model analysis response.
func ParseAnalysis(raw string) (*types.StyleProfile, []string, error) {
	body := llm.ExtractJSONObject(raw)
	if body == "" {
		return nil, nil, fmt.Errorf("no JSON object in response")
	}
	if err := schemas.ValidateEmbedded(rootschemas.SampleAnalysis, []byte(body)); err != nil {
		return nil, nil, err
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if err := schemas.ValidateEmbedded(rootschemas.StyleProfile, resp.Profile); err != nil {
		return nil, nil, err
	}

	var profile types.StyleProfile
	if err := json.Unmarshal(resp.Profile, &profile); err != nil {
		return nil, nil, fmt.Errorf("failed to decode style profile: %w", err)
	}
	if profile.IsEmpty() {
		return nil, nil, fmt.Errorf("style profile is empty")
	}
	return &profile, uniqueStrings(resp.SuggestedTags), nil
}

// WordCount counts CJK characters individually and other words by whitespace.
func WordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				count++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return count
}
