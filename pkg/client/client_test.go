package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/engines"
	"github.com/sparklab/sparklab-api/pkg/handlers"
	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/sparklab/sparklab-api/pkg/testutil"
	"github.com/sparklab/sparklab-api/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *worker.Worker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewMemStore()
	tokens := services.NewTokenService("test-secret", time.Hour)
	profiles := services.NewProfileService(store)
	gens := services.NewGenerationService(store, profiles)
	h := handlers.NewHandlers(services.NewAuthService(store, tokens), profiles, gens, services.NewEngineService(store))

	router := gin.New()
	h.RegisterRoutes(router, tokens, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, worker.New(store, gens, engines.NewSimulator(0), worker.Options{})
}

func TestClientEndToEnd(t *testing.T) {
	srv, w := newServer(t)
	ctx := context.Background()
	c := New(srv.URL+"/", "")

	_, err := c.Register(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)

	auth, err := c.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Token)

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "free", profile.Plan)

	created, err := c.CreateGeneration(ctx, handlers.CreateGenerationRequest{
		EngineKey: "image_engine_a",
		Type:      "image",
		Prompt:    "a cat",
		Params:    json.RawMessage(`{"outputCount":2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "queued", created.Status)

	_, err = w.ProcessOnce(ctx)
	require.NoError(t, err)

	done, err := NewPoller(c).WithInterval(time.Millisecond).Wait(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", done.Status)

	list, err := c.ListGenerations(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Pagination.Total)

	views, err := c.Engines(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 4)

	_, err = c.ConnectEngine(ctx, "image_engine_c", "connected")
	require.NoError(t, err)

	upgraded, err := c.Upgrade(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unlimited", upgraded.RemainingGenerations)
}

func TestClientAPIError(t *testing.T) {
	srv, _ := newServer(t)
	c := New(srv.URL, "bogus")

	_, err := c.Profile(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)

	c.SetToken("")
	_, err = c.GetGeneration(context.Background(), uuid.New())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

type scriptedFetcher struct {
	mu      sync.Mutex
	replies []func() (*handlers.GenerationResponse, error)
	calls   int
}

func (f *scriptedFetcher) GetGeneration(context.Context, uuid.UUID) (*handlers.GenerationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.replies) {
		return &handlers.GenerationResponse{Status: "queued"}, nil
	}
	return f.replies[i]()
}

func status(s string) func() (*handlers.GenerationResponse, error) {
	return func() (*handlers.GenerationResponse, error) {
		return &handlers.GenerationResponse{Status: s}, nil
	}
}

func TestPollerSwallowsErrors(t *testing.T) {
	f := &scriptedFetcher{replies: []func() (*handlers.GenerationResponse, error){
		func() (*handlers.GenerationResponse, error) { return nil, errors.New("network down") },
		status("queued"),
		status("running"),
		status("failed"),
	}}

	g, err := NewPoller(f).WithInterval(time.Millisecond).Wait(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "failed", g.Status)
	assert.Equal(t, 4, f.calls)
}

func TestPollerTimesOut(t *testing.T) {
	f := &scriptedFetcher{}

	_, err := NewPoller(f).WithInterval(time.Millisecond).WithMaxAttempts(5).Wait(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 5, f.calls)
}

func TestPollerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPoller(&scriptedFetcher{}).Wait(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollerDefaults(t *testing.T) {
	p := NewPoller(&scriptedFetcher{})
	assert.Equal(t, time.Second, p.interval)
	assert.Equal(t, 30, p.maxAttempts)
}
