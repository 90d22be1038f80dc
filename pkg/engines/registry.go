// Package engines holds the static table of generation backends and the
// stub implementations standing in for real providers.
package engines

import (
	"fmt"
	"strings"

	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/generation"
)

// Descriptor is the immutable description of one engine.
type Descriptor struct {
	Key                    string          `json:"key"`
	Label                  string          `json:"label"`
	Type                   generation.Type `json:"type"`
	SupportsReferenceImage bool            `json:"supportsReferenceImage"`
	SupportsMasks          bool            `json:"supportsMasks"`
	MaxOutputs             int             `json:"maxOutputs"`
	// Environment variable names a real provider integration would read.
	EnvAPIKeyName     string `json:"-"`
	EnvAPIBaseURLName string `json:"-"`
}

// Engine keys.
const (
	ImageEngineA = "image_engine_a"
	ImageEngineB = "image_engine_b"
	ImageEngineC = "image_engine_c"
	VideoEngineA = "video_engine_a"
)

var descriptors = []Descriptor{
	{
		Key:               ImageEngineA,
		Label:             "Image Engine A",
		Type:              generation.TypeImage,
		MaxOutputs:        4,
		EnvAPIKeyName:     "META_IMAGE_API_KEY",
		EnvAPIBaseURLName: "META_IMAGE_API_BASE_URL",
	},
	{
		Key:               ImageEngineB,
		Label:             "Image Engine B",
		Type:              generation.TypeImage,
		MaxOutputs:        4,
		EnvAPIKeyName:     "IMAGEFX_API_KEY",
		EnvAPIBaseURLName: "IMAGEFX_API_BASE_URL",
	},
	{
		Key:                    ImageEngineC,
		Label:                  "Image Engine C",
		Type:                   generation.TypeImage,
		SupportsReferenceImage: true,
		MaxOutputs:             4,
		EnvAPIKeyName:          "MIXBOARD_API_KEY",
		EnvAPIBaseURLName:      "MIXBOARD_API_BASE_URL",
	},
	{
		Key:               VideoEngineA,
		Label:             "Video Engine A",
		Type:              generation.TypeVideo,
		MaxOutputs:        1,
		EnvAPIKeyName:     "META_VIDEO_API_KEY",
		EnvAPIBaseURLName: "META_VIDEO_API_BASE_URL",
	},
}

var byKey = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Key] = d
	}
	return m
}()

// All returns every descriptor in display order.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Keys returns every engine key in display order.
func Keys() []string {
	keys := make([]string, len(descriptors))
	for i, d := range descriptors {
		keys[i] = d.Key
	}
	return keys
}

// Lookup returns the descriptor for key.
func Lookup(key string) (Descriptor, bool) {
	d, ok := byKey[key]
	return d, ok
}

// Resolve returns the engine registered under key when it produces typ.
func Resolve(key string, typ generation.Type) (Descriptor, error) {
	d, ok := Lookup(key)
	if !ok {
		return Descriptor{}, apperrors.ErrInvalidEngine.WithMessage(
			fmt.Sprintf("Invalid engine. Valid options: %s", strings.Join(Keys(), ", ")))
	}
	if d.Type != typ {
		return Descriptor{}, apperrors.ErrInvalidType.WithMessage(
			fmt.Sprintf("Engine %s only supports %s generations", key, d.Type))
	}
	return d, nil
}

// Supports rejects params that use a capability the engine does not declare.
func (d Descriptor) Supports(params generation.Params) error {
	if params.HasReferenceImage() && !d.SupportsReferenceImage {
		return apperrors.ErrInvalidParams.WithMessage(
			fmt.Sprintf("Engine %s does not support reference images", d.Key))
	}
	return nil
}

// Validate checks that a request targets a known engine with a matching
// media type and only uses capabilities the engine declares.
func Validate(key string, typ generation.Type, params generation.Params) (Descriptor, error) {
	d, err := Resolve(key, typ)
	if err != nil {
		return Descriptor{}, err
	}
	if err := d.Supports(params); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}
