package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sparklab/sparklab-api/pkg/generation"
	log "github.com/sirupsen/logrus"
)

// Placeholder results returned by the stub engines.
const (
	StubImageURL  = "https://example.com/fake.jpg"
	StubVideoURL  = "https://example.com/fake-video-result.mp4"
	StubVersion   = "1.0.0"
	stubResultTag = "Stubbed response - will be replaced with real engine integration"
)

// Request is what the lifecycle hands to an engine.
type Request struct {
	GenerationID string
	EngineKey    string
	Type         generation.Type
	Prompt       string
	Params       json.RawMessage
}

// Result is a normalized engine response.
type Result struct {
	URL  string
	Meta map[string]any
	Raw  map[string]any
}

// Engine produces media for a request.
type Engine interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// imageStub fabricates an outputCount-sized list of placeholder URLs.
type imageStub struct {
	desc Descriptor
}

func (e imageStub) Generate(ctx context.Context, req Request) (Result, error) {
	if req.Type != generation.TypeImage {
		return Result{}, fmt.Errorf("engine %s only supports image generations", e.desc.Key)
	}
	p, err := generation.ParseParams(req.Params)
	if err != nil {
		return Result{}, err
	}
	count := p.Outputs(e.desc.MaxOutputs)
	urls := make([]string, count)
	for i := range urls {
		urls[i] = StubImageURL
	}

	meta := map[string]any{
		"urls":        urls,
		"outputCount": count,
	}
	putString(meta, "aspectRatio", p.AspectRatio)
	putString(meta, "style", p.Style)
	putNumber(meta, "steps", p.Steps)
	putNumber(meta, "promptStrength", p.PromptStrength)
	putNumber(meta, "seed", p.Seed)

	return Result{URL: StubImageURL, Meta: meta, Raw: rawResponse(req)}, nil
}

type videoStub struct {
	desc Descriptor
}

func (e videoStub) Generate(ctx context.Context, req Request) (Result, error) {
	if req.Type != generation.TypeVideo {
		return Result{}, fmt.Errorf("engine %s only supports video generations", e.desc.Key)
	}
	p, err := generation.ParseParams(req.Params)
	if err != nil {
		return Result{}, err
	}
	meta := map[string]any{}
	putString(meta, "aspectRatio", p.AspectRatio)
	putString(meta, "style", p.Style)
	putNumber(meta, "steps", p.Steps)

	return Result{URL: StubVideoURL, Meta: meta, Raw: rawResponse(req)}, nil
}

// New returns the engine implementation for a descriptor.
func New(d Descriptor) Engine {
	if d.Type == generation.TypeVideo {
		return videoStub{desc: d}
	}
	return imageStub{desc: d}
}

// Simulator runs engines with a fixed processing delay, standing in for
// provider latency.
type Simulator struct {
	engines map[string]Engine
	delay   time.Duration
}

// NewSimulator builds a Simulator over every registered engine.
func NewSimulator(delay time.Duration) *Simulator {
	s := &Simulator{engines: make(map[string]Engine, len(descriptors)), delay: delay}
	for _, d := range descriptors {
		s.engines[d.Key] = New(d)
	}
	return s
}

// Run waits out the processing delay and dispatches to the engine.
func (s *Simulator) Run(ctx context.Context, req Request) (Result, error) {
	eng, ok := s.engines[req.EngineKey]
	if !ok {
		return Result{}, fmt.Errorf("unsupported engine %q", req.EngineKey)
	}

	started := time.Now()
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	res, err := eng.Generate(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if res.Meta == nil {
		res.Meta = map[string]any{}
	}
	res.Meta["note"] = stubResultTag
	res.Meta["engine_version"] = StubVersion
	res.Meta["processing_time_ms"] = time.Since(started).Milliseconds()

	log.Debugf("Engine %s finished generation %s in %s", req.EngineKey, req.GenerationID, time.Since(started))
	return res, nil
}

func rawResponse(req Request) map[string]any {
	raw := map[string]any{
		"stub":      true,
		"engineKey": req.EngineKey,
		"type":      req.Type,
	}
	if len(req.Params) > 0 {
		raw["params"] = req.Params
	}
	return raw
}

func putString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func putNumber(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}
