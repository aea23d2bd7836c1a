// Package memory implements the profile repository in process memory.
// Suitable for single-instance deployments, local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYED LOCKS
// ══════════════════════════════════════════════════════════════════════════════

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLocks hands out one mutex per profile ID. Entries are released
// once nobody holds or waits for them.
type keyLocks struct {
	mu      sync.Mutex
	entries map[profile.ID]*lockEntry
}

func newKeyLocks() *keyLocks {
	return &keyLocks{entries: make(map[profile.ID]*lockEntry)}
}

func (k *keyLocks) lock(id profile.ID) func() {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &lockEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}

// lockPair locks both IDs in ascending order so that two concurrent
// pair updates over the same profiles can never deadlock.
func (k *keyLocks) lockPair(a, b profile.ID) func() {
	if a == b {
		return k.lock(a)
	}
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	unlockLo := k.lock(lo)
	unlockHi := k.lock(hi)
	return func() {
		unlockHi()
		unlockLo()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository over a map.
// Writers serialize on per-profile locks; readers only take the map's read lock
// for the duration of a copy, so browsing never waits on a like in progress.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[profile.ID]*profile.Profile
	locks    *keyLocks
}

// Compile-time check.
var _ profile.Repository = (*ProfileRepository)(nil)

// NewProfileRepository creates an empty repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[profile.ID]*profile.Profile),
		locks:    newKeyLocks(),
	}
}

// Create stores a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || !p.ID.IsValid() {
		return profile.ErrInvalidProfileID
	}

	unlock := r.locks.lock(p.ID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; ok {
		return profile.ErrProfileExists
	}
	r.profiles[p.ID] = p.Clone()
	return nil
}

// Get returns a copy of the profile.
func (r *ProfileRepository) Get(ctx context.Context, id profile.ID) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// GetMany returns the profiles that exist, in the order of ids.
func (r *ProfileRepository) GetMany(ctx context.Context, ids []profile.ID) ([]*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*profile.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// ListEligible returns copies of the profiles passing the filter, ordered by ID.
func (r *ProfileRepository) ListEligible(ctx context.Context, filter profile.EligibleFilter) ([]*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exclude := make(map[profile.ID]struct{}, len(filter.Exclude))
	for _, id := range filter.Exclude {
		exclude[id] = struct{}{}
	}

	r.mu.RLock()
	out := make([]*profile.Profile, 0, len(r.profiles))
	for id, p := range r.profiles {
		if _, skip := exclude[id]; skip {
			continue
		}
		if filter.VisibleOnly && !p.Visible {
			continue
		}
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update applies fn to a copy of the profile and stores it if fn succeeds.
func (r *ProfileRepository) Update(ctx context.Context, id profile.ID, fn profile.MutateFunc) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := r.locks.lock(id)
	defer unlock()

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.profiles[id] = current.Clone()
	r.mu.Unlock()
	return current, nil
}

// UpdatePair applies fn to copies of both profiles under both locks and
// stores both only if fn succeeds.
func (r *ProfileRepository) UpdatePair(ctx context.Context, a, b profile.ID, fn profile.PairFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.locks.lockPair(a, b)
	defer unlock()

	r.mu.RLock()
	first := r.profiles[a].Clone()
	second := first
	if a != b {
		second = r.profiles[b].Clone()
	}
	r.mu.RUnlock()

	if err := fn(first, second); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if first != nil {
		r.profiles[first.ID] = first.Clone()
	}
	if second != nil && a != b {
		r.profiles[second.ID] = second.Clone()
	}
	return nil
}

// Delete removes the profile.
func (r *ProfileRepository) Delete(ctx context.Context, id profile.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.locks.lock(id)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return profile.ErrProfileNotFound
	}
	delete(r.profiles, id)
	return nil
}

// Stats computes operator aggregates.
func (r *ProfileRepository) Stats(ctx context.Context, now time.Time) (*profile.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	today := shared.TodayAt(now)
	last24h := shared.Last24HoursAt(now)

	r.mu.RLock()
	defer r.mu.RUnlock()

	st := &profile.Stats{Total: len(r.profiles)}
	matchedParticipants := 0
	for _, p := range r.profiles {
		if p.Visible {
			st.Visible++
		}
		if today.Contains(p.CreatedAt) {
			st.CreatedToday++
		}
		if last24h.Contains(p.CreatedAt) {
			st.CreatedLast24h++
		}
		if len(p.Attachments) > 0 {
			st.WithAttachments++
		}
		st.TotalLikes += len(p.Ledger.LikedIDs())
		matchedParticipants += len(p.Ledger.MatchedIDs())
	}
	st.TotalMatches = matchedParticipants / 2
	return st, nil
}
