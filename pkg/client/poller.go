package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/generation"
	"github.com/sparklab/sparklab-api/pkg/handlers"
	log "github.com/sirupsen/logrus"
)

// Polling defaults: one request per second, thirty attempts.
const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 30
)

// ErrPollTimeout means the generation was still not terminal after the last
// attempt. The server keeps working on it.
var ErrPollTimeout = errors.New("generation is taking longer than expected, check back later")

// Fetcher loads the current state of a generation.
type Fetcher interface {
	GetGeneration(ctx context.Context, id uuid.UUID) (*handlers.GenerationResponse, error)
}

// Poller waits for a generation to reach a terminal status.
type Poller struct {
	fetcher     Fetcher
	interval    time.Duration
	maxAttempts int
	logger      *log.Logger
}

func NewPoller(fetcher Fetcher) *Poller {
	return &Poller{
		fetcher:     fetcher,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultPollMaxAttempts,
		logger:      log.StandardLogger(),
	}
}

// WithInterval overrides the delay between attempts.
func (p *Poller) WithInterval(d time.Duration) *Poller {
	p.interval = d
	return p
}

// WithMaxAttempts overrides the attempt ceiling.
func (p *Poller) WithMaxAttempts(n int) *Poller {
	if n > 0 {
		p.maxAttempts = n
	}
	return p
}

// Wait fetches the generation once per interval until it is terminal.
// Fetch errors are logged and polling continues. Returns ErrPollTimeout
// after maxAttempts fetches, or ctx.Err() if ctx ends first.
func (p *Poller) Wait(ctx context.Context, id uuid.UUID) (*handlers.GenerationResponse, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		g, err := p.fetcher.GetGeneration(ctx, id)
		if err != nil {
			p.logger.Warnf("Poll %d/%d for generation %s failed: %v", attempt, p.maxAttempts, id.String(), err)
			continue
		}
		if generation.Status(g.Status).IsTerminal() {
			return g, nil
		}
		p.logger.Debugf("Poll %d/%d: generation %s is %s", attempt, p.maxAttempts, id.String(), g.Status)
	}
	return nil, ErrPollTimeout
}
