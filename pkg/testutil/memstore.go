// Package testutil provides an in-memory store with the same contract as
// queries.Store for service, worker and handler tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
	"github.com/sparklab/sparklab-api/pkg/quota"
)

// MemStore is safe for concurrent use. The zero value is not usable; call
// NewMemStore.
type MemStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*db.User
	profiles    map[uuid.UUID]*db.Profile
	generations map[uuid.UUID]*db.Generation
	jobs        map[uuid.UUID]*db.GenerationJob
	conns       map[string]*db.EngineConnection
	seq         int

	// Now is the clock used for timestamps and job due dates.
	Now func() time.Time
	// ProfileInserts counts successful InsertProfile calls.
	ProfileInserts int
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:       map[uuid.UUID]*db.User{},
		profiles:    map[uuid.UUID]*db.Profile{},
		generations: map[uuid.UUID]*db.Generation{},
		jobs:        map[uuid.UUID]*db.GenerationJob{},
		conns:       map[string]*db.EngineConnection{},
		Now:         time.Now,
	}
}

// tick returns a strictly increasing timestamp so created_at ordering is stable.
func (m *MemStore) tick() time.Time {
	m.seq++
	return m.Now().Add(time.Duration(m.seq) * time.Microsecond)
}

func (m *MemStore) CreateUser(_ context.Context, email, passwordHash string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, queries.ErrDuplicate
		}
	}
	now := m.tick()
	u := &db.User{ID: uuid.New(), Email: email, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *MemStore) FindUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) FindProfile(_ context.Context, userID uuid.UUID) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) InsertProfile(_ context.Context, userID uuid.UUID, email string) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; ok {
		return nil, queries.ErrDuplicate
	}
	now := m.tick()
	p := &db.Profile{ID: userID, Email: email, Plan: string(quota.PlanFree), CreatedAt: now, UpdatedAt: now}
	m.profiles[userID] = p
	m.ProfileInserts++
	cp := *p
	return &cp, nil
}

func (m *MemStore) SetPlan(_ context.Context, userID uuid.UUID, plan string) (*db.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	p.Plan = plan
	p.UpdatedAt = m.tick()
	cp := *p
	return &cp, nil
}

// SetUsage overwrites a profile's counter.
func (m *MemStore) SetUsage(userID uuid.UUID, used int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		p.UsedGenerations = used
	}
}

func (m *MemStore) CreateGenerationWithJob(_ context.Context, g *db.Generation, runAt time.Time) (*db.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[g.UserID]
	if !ok {
		return nil, queries.ErrQuotaExhausted
	}
	if p.Plan != string(quota.PlanPaid) {
		if p.UsedGenerations >= quota.FreeLimit {
			return nil, queries.ErrQuotaExhausted
		}
		p.UsedGenerations++
	}

	now := m.tick()
	created := *g
	created.ID = uuid.New()
	if len(created.Params) == 0 {
		created.Params = types.JSONText(`{}`)
	}
	created.CreatedAt = now
	created.UpdatedAt = now
	m.generations[created.ID] = &created

	job := &db.GenerationJob{
		ID:           uuid.New(),
		GenerationID: created.ID,
		Status:       db.JobPending,
		RunAt:        runAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.jobs[job.ID] = job

	cp := created
	return &cp, nil
}

func (m *MemStore) FindGeneration(_ context.Context, id, userID uuid.UUID) (*db.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *MemStore) FindGenerationByID(_ context.Context, id uuid.UUID) (*db.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *MemStore) ListGenerations(_ context.Context, userID uuid.UUID, limit, offset int) ([]db.Generation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owned []db.Generation
	for _, g := range m.generations {
		if g.UserID == userID {
			owned = append(owned, *g)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	total := len(owned)
	if offset >= total {
		return []db.Generation{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

func (m *MemStore) MarkGenerationRunning(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok || g.Status != "queued" {
		return false, nil
	}
	g.Status = "running"
	g.UpdatedAt = m.tick()
	return true, nil
}

func (m *MemStore) CompleteGeneration(_ context.Context, id uuid.UUID, c queries.Completion) (*db.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.generations[id]
	if !ok || (g.Status != "queued" && g.Status != "running") {
		return nil, nil
	}
	g.Status = c.Status
	g.ResultURL = c.ResultURL
	g.ResultMeta = c.ResultMeta
	g.RawResponse = c.RawResponse
	g.Error = c.Error
	g.UpdatedAt = m.tick()
	cp := *g
	return &cp, nil
}

func (m *MemStore) ClaimNextJob(_ context.Context, staleAfter time.Duration) (*db.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()

	var next *db.GenerationJob
	for _, j := range m.jobs {
		due := j.Status == db.JobPending && !j.RunAt.After(now)
		stale := j.Status == db.JobRunning && j.LockedAt.Valid && j.LockedAt.Time.Before(now.Add(-staleAfter))
		if !due && !stale {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) {
			next = j
		}
	}
	if next == nil {
		return nil, nil
	}
	next.Status = db.JobRunning
	next.Attempts++
	next.LockedAt.Time, next.LockedAt.Valid = now, true
	next.UpdatedAt = now
	cp := *next
	return &cp, nil
}

func (m *MemStore) FinishJob(_ context.Context, id uuid.UUID) error {
	return m.updateJob(id, func(j *db.GenerationJob) {
		j.Status = db.JobDone
		j.LockedAt.Valid = false
	})
}

func (m *MemStore) RetryJob(_ context.Context, id uuid.UUID, cause string, runAt time.Time) error {
	return m.updateJob(id, func(j *db.GenerationJob) {
		j.Status = db.JobPending
		j.LastError.String, j.LastError.Valid = cause, true
		j.RunAt = runAt
		j.LockedAt.Valid = false
	})
}

func (m *MemStore) FailJob(_ context.Context, id uuid.UUID, cause string) error {
	return m.updateJob(id, func(j *db.GenerationJob) {
		j.Status = db.JobFailed
		j.LastError.String, j.LastError.Valid = cause, true
		j.LockedAt.Valid = false
	})
}

func (m *MemStore) updateJob(id uuid.UUID, fn func(*db.GenerationJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = m.Now()
	}
	return nil
}

// JobFor returns a copy of the job attached to a generation.
func (m *MemStore) JobFor(generationID uuid.UUID) *db.GenerationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.GenerationID == generationID {
			cp := *j
			return &cp
		}
	}
	return nil
}

// GenerationCount returns the number of stored generations.
func (m *MemStore) GenerationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generations)
}

func (m *MemStore) UpsertEngineConnection(_ context.Context, userID uuid.UUID, engineKey, status string) (*db.EngineConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID.String() + "/" + engineKey
	now := m.tick()
	c, ok := m.conns[key]
	if !ok {
		c = &db.EngineConnection{ID: uuid.New(), UserID: userID, EngineKey: engineKey, CreatedAt: now}
		m.conns[key] = c
	}
	c.Status = status
	c.UpdatedAt = now
	cp := *c
	return &cp, nil
}

func (m *MemStore) ListEngineConnections(_ context.Context, userID uuid.UUID) ([]db.EngineConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []db.EngineConnection{}
	for _, c := range m.conns {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EngineKey < out[j].EngineKey })
	return out, nil
}
