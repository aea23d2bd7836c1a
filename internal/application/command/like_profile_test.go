package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/domain/notification"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/memory"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.Event(nil), p.events...)
}

func seedProfile(t *testing.T, repo profile.Repository, id int64, name string, interests ...string) *profile.Profile {
	t.Helper()
	if len(interests) == 0 {
		interests = []string{"CS2"}
	}
	p, err := profile.New(profile.ID(id), profile.Details{
		Username:  "user" + name,
		Name:      name,
		Region:    profile.RegionEU,
		Platform:  profile.PlatformPC,
		Interests: interests,
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func newLikeHandler(repo profile.Repository) (*LikeProfileHandler, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewLikeProfileHandler(repo, pub, logger.Discard()), pub
}

func mustGet(t *testing.T, repo profile.Repository, id int64) *profile.Profile {
	t.Helper()
	p, err := repo.Get(context.Background(), profile.ID(id))
	require.NoError(t, err)
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Like semantics
// ─────────────────────────────────────────────────────────────────────────────

func TestLikeProfile_FirstLikeNotifiesTarget(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	seedProfile(t, repo, 2, "Bob")
	h, pub := newLikeHandler(repo)

	res, err := h.Handle(context.Background(), LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)

	assert.Equal(t, profile.ResultLiked, res.Result)
	assert.True(t, res.FirstLike)
	assert.False(t, res.NewMatch)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, notification.KindLike, res.Notifications[0].Kind)
	assert.Equal(t, int64(2), res.Notifications[0].RecipientID)
	assert.Equal(t, int64(1), res.Notifications[0].PartnerID)
	assert.Equal(t, "Alice", res.Notifications[0].PartnerName)

	require.Len(t, pub.Events(), 1)
	assert.Equal(t, shared.EventLikeReceived, pub.Events()[0].EventType())

	a, b := mustGet(t, repo, 1), mustGet(t, repo, 2)
	assert.True(t, a.Ledger.HasLiked(2))
	assert.True(t, b.Ledger.IsLikedBy(1))
	assert.False(t, b.Ledger.HasLiked(1))
	assert.Equal(t, 1, a.Ledger.LikedCount())
	assert.Equal(t, 1, b.Ledger.LikedByCount())
}

func TestLikeProfile_Idempotent(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	seedProfile(t, repo, 2, "Bob")
	h, pub := newLikeHandler(repo)
	ctx := context.Background()

	_, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)
	before := mustGet(t, repo, 1)

	res, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)

	assert.False(t, res.FirstLike)
	assert.Empty(t, res.Notifications)
	assert.Len(t, pub.Events(), 1, "second like must not publish anything")

	after := mustGet(t, repo, 1)
	assert.Equal(t, before.Ledger.LikedIDs(), after.Ledger.LikedIDs())
	assert.Equal(t, before.Ledger.LikedCount(), after.Ledger.LikedCount())
	assert.Equal(t, 1, mustGet(t, repo, 2).Ledger.LikedByCount())
}

func TestLikeProfile_MutualLikeCreatesOneMatch(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	seedProfile(t, repo, 2, "Bob")
	h, pub := newLikeHandler(repo)
	ctx := context.Background()

	first, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)
	assert.False(t, first.IsMatch())

	second, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 2, TargetID: 1})
	require.NoError(t, err)
	assert.True(t, second.IsMatch())
	assert.True(t, second.NewMatch)
	assert.True(t, second.FirstLike)

	// like to Alice + one match notification per party
	require.Len(t, second.Notifications, 3)
	assert.Equal(t, notification.KindLike, second.Notifications[0].Kind)
	assert.Equal(t, int64(1), second.Notifications[0].RecipientID)

	matches := map[int64]notification.Notification{}
	for _, n := range second.Notifications[1:] {
		assert.Equal(t, notification.KindMatch, n.Kind)
		matches[n.RecipientID] = n
	}
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[2].PartnerID)
	assert.Equal(t, "userAlice", matches[2].PartnerUsername)
	assert.Equal(t, int64(2), matches[1].PartnerID)
	assert.Equal(t, "userBob", matches[1].PartnerUsername)

	a, b := mustGet(t, repo, 1), mustGet(t, repo, 2)
	assert.Equal(t, []profile.ID{2}, a.Ledger.MatchedIDs())
	assert.Equal(t, []profile.ID{1}, b.Ledger.MatchedIDs())
	assert.Equal(t, 1, a.Ledger.MatchedCount())
	assert.Equal(t, 1, b.Ledger.MatchedCount())

	// Repeats after the match report Matched but emit nothing.
	third, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 2, TargetID: 1})
	require.NoError(t, err)
	assert.True(t, third.IsMatch())
	assert.False(t, third.NewMatch)
	assert.Empty(t, third.Notifications)

	matchEvents := 0
	for _, ev := range pub.Events() {
		if ev.EventType() == shared.EventMatchCreated {
			matchEvents++
		}
	}
	assert.Equal(t, 2, matchEvents)
}

func TestLikeProfile_SelfLikeRejected(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	h, pub := newLikeHandler(repo)

	_, err := h.Handle(context.Background(), LikeProfileCommand{ViewerID: 1, TargetID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, profile.ErrSelfLike)
	assert.True(t, shared.IsValidation(err))
	assert.False(t, shared.IsRetryable(err))
	assert.Empty(t, pub.Events())

	p := mustGet(t, repo, 1)
	assert.Zero(t, p.Ledger.LikedCount())
	assert.Zero(t, p.Ledger.MatchedCount())
}

func TestLikeProfile_UnknownUser(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	h, _ := newLikeHandler(repo)

	_, err := h.Handle(context.Background(), LikeProfileCommand{ViewerID: 1, TargetID: 404})
	require.Error(t, err)
	assert.ErrorIs(t, err, profile.ErrUnknownUser)
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, mustGet(t, repo, 1).Ledger.LikedIDs())
}

func TestLikeProfile_HiddenTarget(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	seedProfile(t, repo, 2, "Bob")
	seedProfile(t, repo, 3, "Carol")
	h, _ := newLikeHandler(repo)
	ctx := context.Background()

	// Alice liked Carol before Carol hid her profile.
	_, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 3})
	require.NoError(t, err)

	for _, id := range []profile.ID{2, 3} {
		_, err := repo.Update(ctx, id, func(p *profile.Profile) error {
			p.SetVisible(false, time.Now())
			return nil
		})
		require.NoError(t, err)
	}

	_, err = h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 2})
	assert.ErrorIs(t, err, profile.ErrTargetHidden)
	assert.False(t, mustGet(t, repo, 1).Ledger.HasLiked(2))

	res, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 3})
	require.NoError(t, err)
	assert.False(t, res.FirstLike)
}

func TestLikeProfile_RepairsCounterDrift(t *testing.T) {
	repo := memory.NewProfileRepository()
	p, err := profile.New(1, profile.Details{
		Name: "Alice", Region: profile.RegionEU, Platform: profile.PlatformPC, Interests: []string{"CS2"},
	}, time.Now())
	require.NoError(t, err)
	p.Ledger = profile.RestoreLedger([]profile.ID{3}, nil, nil, 7, 2, 0)
	require.NoError(t, repo.Create(context.Background(), p))
	seedProfile(t, repo, 2, "Bob")

	h, _ := newLikeHandler(repo)
	_, err = h.Handle(context.Background(), LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)

	a := mustGet(t, repo, 1)
	assert.Equal(t, 2, a.Ledger.LikedCount())
	assert.Equal(t, 0, a.Ledger.LikedByCount())
}

func TestLikeProfile_RecreatedProfileStartsClean(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	seedProfile(t, repo, 2, "Bob")
	h, pub := newLikeHandler(repo)
	ctx := context.Background()

	_, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, 2))
	seedProfile(t, repo, 2, "Bob")

	res, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 2, TargetID: 1})
	require.NoError(t, err)
	assert.False(t, res.IsMatch())
	assert.False(t, res.NewMatch)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, notification.KindLike, res.Notifications[0].Kind)

	a := mustGet(t, repo, 1)
	assert.Empty(t, a.Ledger.LikedIDs())
	assert.Empty(t, a.Ledger.MatchedIDs())
	assert.Equal(t, 0, a.Ledger.LikedCount())

	for _, ev := range pub.Events() {
		assert.NotEqual(t, shared.EventMatchCreated, ev.EventType())
	}

	again, err := h.Handle(ctx, LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)
	assert.True(t, again.FirstLike)
	assert.True(t, again.NewMatch)
}

func TestLikeProfile_ConcurrentMutualLikes(t *testing.T) {
	for round := 0; round < 50; round++ {
		repo := memory.NewProfileRepository()
		seedProfile(t, repo, 1, "Alice")
		seedProfile(t, repo, 2, "Bob")
		h, _ := newLikeHandler(repo)

		var (
			wg      sync.WaitGroup
			results [2]*LikeProfileResult
			errs    [2]error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = h.Handle(context.Background(), LikeProfileCommand{ViewerID: 1, TargetID: 2})
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = h.Handle(context.Background(), LikeProfileCommand{ViewerID: 2, TargetID: 1})
		}()
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		newMatches := 0
		for _, r := range results {
			if r.NewMatch {
				newMatches++
			}
		}
		assert.Equal(t, 1, newMatches, "round %d", round)
		assert.True(t, mustGet(t, repo, 1).Ledger.IsMatchedWith(2))
		assert.True(t, mustGet(t, repo, 2).Ledger.IsMatchedWith(1))
	}
}

func TestLikeProfile_ThirdPartyUnaffected(t *testing.T) {
	repo := memory.NewProfileRepository()
	seedProfile(t, repo, 1, "Alice")
	seedProfile(t, repo, 2, "Bob")
	seedProfile(t, repo, 3, "Carol")
	h, _ := newLikeHandler(repo)

	_, err := h.Handle(context.Background(), LikeProfileCommand{ViewerID: 1, TargetID: 2})
	require.NoError(t, err)

	c := mustGet(t, repo, 3)
	assert.Empty(t, c.Ledger.LikedIDs())
	assert.Empty(t, c.Ledger.LikedByIDs())
	assert.False(t, mustGet(t, repo, 2).Ledger.HasLiked(1))
}
