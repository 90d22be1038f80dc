package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the longest accepted prompt, counted in characters after trimming.
const MaxPromptLength = 1000

// ValidatePrompt checks the length of the trimmed prompt and returns the
// trimmed form. Callers persist the prompt as submitted.
func ValidatePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		return "", fmt.Errorf("prompt is required")
	}
	if n > MaxPromptLength {
		return "", fmt.Errorf("prompt must be at most %d characters", MaxPromptLength)
	}
	return trimmed, nil
}

// Params is the typed view over the open parameter bag of a request.
// Values of the wrong JSON type are ignored rather than rejected.
type Params struct {
	AspectRatio       *string
	Steps             *float64
	PromptStrength    *float64
	Seed              *float64
	Style             *string
	ReferenceImageURL *string
	OutputCount       *float64
}

// ParseParams reads the known keys out of a raw JSON object. An empty or
// null document yields zero Params.
func ParseParams(raw json.RawMessage) (Params, error) {
	var p Params
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	var bag map[string]any
	if err := json.Unmarshal(raw, &bag); err != nil {
		return p, fmt.Errorf("params must be a JSON object: %w", err)
	}
	p.AspectRatio = stringField(bag, "aspectRatio")
	p.Style = stringField(bag, "style")
	p.ReferenceImageURL = stringField(bag, "referenceImageUrl")
	p.Steps = numberField(bag, "steps")
	p.PromptStrength = numberField(bag, "promptStrength")
	p.Seed = numberField(bag, "seed")
	p.OutputCount = numberField(bag, "outputCount")
	return p, nil
}

// HasReferenceImage reports whether a non-empty reference image was supplied.
func (p Params) HasReferenceImage() bool {
	return p.ReferenceImageURL != nil && strings.TrimSpace(*p.ReferenceImageURL) != ""
}

// Outputs returns the number of outputs to produce, clamped to [1, max].
// Missing, zero and fractional counts follow the same rules as the web
// client: missing or zero means one, fractions are truncated.
func (p Params) Outputs(max int) int {
	if max < 1 {
		max = 1
	}
	if p.OutputCount == nil || math.IsNaN(*p.OutputCount) {
		return 1
	}
	// Clamp before converting so huge values cannot overflow int.
	v := math.Trunc(*p.OutputCount)
	switch {
	case v >= float64(max):
		return max
	case v < 1:
		return 1
	default:
		return int(v)
	}
}

func stringField(bag map[string]any, key string) *string {
	v, ok := bag[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func numberField(bag map[string]any, key string) *float64 {
	v, ok := bag[key].(float64)
	if !ok {
		return nil
	}
	return &v
}
