package generation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var aspectRatioPattern = regexp.MustCompile(`^([0-9]+):([0-9]+)$`)

// paramRules carries the constraints on the known parameters. Absent
// values are never checked. steps and outputCount pass through; the count
// is clamped by Outputs instead.
type paramRules struct {
	AspectRatio       *string  `validate:"omitempty,aspectratio"`
	PromptStrength    *float64 `validate:"omitempty,gte=0,lte=1"`
	ReferenceImageURL *string  `validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations adds the custom rules used on generation input to v.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("aspectratio", func(fl validator.FieldLevel) bool {
		return IsAspectRatio(fl.Field().String())
	})
}

// IsAspectRatio reports whether s has the form W:H with positive integers.
func IsAspectRatio(s string) bool {
	m := aspectRatioPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	return errW == nil && errH == nil && w > 0 && h > 0
}

// Validate checks the known parameters against their allowed ranges.
func (p Params) Validate() error {
	rules := paramRules{
		AspectRatio:       p.AspectRatio,
		PromptStrength:    p.PromptStrength,
		ReferenceImageURL: p.ReferenceImageURL,
	}
	if p.ReferenceImageURL != nil && strings.TrimSpace(*p.ReferenceImageURL) == "" {
		rules.ReferenceImageURL = nil
	}

	err := validate.Struct(rules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("invalid %s", paramName(verrs[0].Field()))
	}
	return err
}

func paramName(field string) string {
	if field == "" {
		return "params"
	}
	switch field {
	case "ReferenceImageURL":
		return "referenceImageUrl"
	default:
		return strings.ToLower(field[:1]) + field[1:]
	}
}
