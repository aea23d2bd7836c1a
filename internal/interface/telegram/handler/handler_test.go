package handler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/memory"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
	"github.com/waykegoat/MATCH/pkg/logger"
	"github.com/waykegoat/MATCH/pkg/retry"
)

type fixture struct {
	h        *Handlers
	repo     *memory.ProfileRepository
	sessions *session.Store
	removed  []int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memory.NewProfileRepository()
	log := logger.Discard()
	f := &fixture{
		repo:     repo,
		sessions: session.NewStore(session.NewMemoryBackend(), session.DefaultTTL),
	}

	f.h = New(Deps{
		Sessions:       f.sessions,
		SaveProfile:    command.NewSaveProfileHandler(repo, nil, log),
		Like:           command.NewLikeProfileHandler(repo, nil, log),
		UpdateSettings: command.NewUpdateSettingsHandler(repo, nil),
		Attachments:    command.NewManageAttachmentsHandler(repo),
		RemoveProfile:  command.NewRemoveProfileHandler(repo, nil, log),
		NextCandidate:  query.NewNextCandidateHandler(repo, query.DefaultSelectorConfig(), log),
		GetProfile:     query.NewGetProfileHandler(repo),
		Relations:      query.NewGetRelationsHandler(repo),
		Stats:          query.NewGetStatsHandler(repo, nil, log),
		IsAdmin:        func(id int64) bool { return id == 999 },
		OnProfileRemoved: func(id int64) {
			f.removed = append(f.removed, id)
		},
		LikeRetrier: retry.DatabaseRetrier(retry.WithMaxAttempts(1)),
		Logger:      log,
	})
	return f
}

func (f *fixture) seed(t *testing.T, id int64, name string, interests ...string) {
	t.Helper()
	if len(interests) == 0 {
		interests = []string{"Valorant"}
	}
	_, err := f.h.deps.SaveProfile.Handle(context.Background(), command.SaveProfileCommand{
		Submission: command.ProfileSubmission{
			UserID:    id,
			Username:  fmt.Sprintf("user%d", id),
			Name:      name,
			Region:    "EU",
			Platform:  "PC",
			Interests: interests,
		},
	})
	require.NoError(t, err)
}

func msg(userID int64, text string) Request {
	return Request{UserID: userID, ChatID: userID, Text: text}
}

func cb(userID int64, data string) Request {
	return Request{UserID: userID, ChatID: userID, MessageID: 7, Text: data, CallbackID: "cb"}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wizard
// ─────────────────────────────────────────────────────────────────────────────

func TestWizard_CreatesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const id = 100

	resp, err := f.h.Start(ctx, msg(id, "/start"))
	require.NoError(t, err)
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "Как тебя зовут?")

	resp, handled, err := f.h.WizardText(ctx, msg(id, "N"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, resp.Replies[0].Text, "Имя должно быть")

	resp, handled, err = f.h.WizardText(ctx, msg(id, "Nova"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.NotNil(t, resp.Replies[0].Keyboard)

	_, err = f.h.Region(ctx, cb(id, presenter.CbRegion+"EU"))
	require.NoError(t, err)
	_, err = f.h.Platform(ctx, cb(id, presenter.CbPlatform+"PC"))
	require.NoError(t, err)
	_, err = f.h.SkipAge(ctx, cb(id, presenter.CbSkipAge))
	require.NoError(t, err)

	_, handled, err = f.h.WizardText(ctx, msg(id, "пропустить"))
	require.NoError(t, err)
	require.True(t, handled)

	resp, err = f.h.InterestsDone(ctx, cb(id, presenter.CbInterestsDone))
	require.NoError(t, err)
	assert.True(t, resp.Alert, "at least one interest is required")

	_, err = f.h.ToggleInterest(ctx, cb(id, presenter.CbInterest+"2"))
	require.NoError(t, err)

	resp, err = f.h.InterestsDone(ctx, cb(id, presenter.CbInterestsDone))
	require.NoError(t, err)
	require.Len(t, resp.Replies, 3)
	assert.True(t, resp.Replies[1].MainMenu)

	p, err := f.repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Nova", p.Name)
	assert.Equal(t, profile.RegionEU, p.Region)
	assert.Zero(t, p.Age)
	assert.Equal(t, []string{"Valorant"}, p.Interests)

	_, err = f.sessions.Get(ctx, id)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestWizard_StaleButtonIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.h.Region(ctx, cb(1, presenter.CbRegion+"EU"))
	require.NoError(t, err)
	assert.Equal(t, textExpired, resp.Toast)

	_, err = f.h.Start(ctx, msg(1, "/start"))
	require.NoError(t, err)

	resp, err = f.h.Platform(ctx, cb(1, presenter.CbPlatform+"PC"))
	require.NoError(t, err)
	assert.Equal(t, textStepPassed, resp.Toast)
}

func TestWizardText_NoSession(t *testing.T) {
	f := newFixture(t)

	resp, handled, err := f.h.WizardText(context.Background(), msg(1, "hello"))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, resp)
}

func TestStart_ExistingProfile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, "Nova")

	resp, err := f.h.Start(context.Background(), msg(1, "/start"))
	require.NoError(t, err)
	require.Len(t, resp.Replies, 1)
	assert.True(t, resp.Replies[0].MainMenu)
	assert.Contains(t, resp.Replies[0].Text, "Nova")
}

func TestMyProfile_Missing(t *testing.T) {
	f := newFixture(t)

	resp, err := f.h.MyProfile(context.Background(), msg(1, presenter.BtnMyProfile))
	require.NoError(t, err)
	assert.Equal(t, textNoProfile, resp.Replies[0].Text)
}

// ─────────────────────────────────────────────────────────────────────────────
// Search and likes
// ─────────────────────────────────────────────────────────────────────────────

func TestLike_ThenMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, "Ann")
	f.seed(t, 2, "Bob")

	resp, err := f.h.Search(ctx, msg(1, presenter.BtnSearch))
	require.NoError(t, err)
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "Bob")

	resp, err = f.h.Like(ctx, cb(1, presenter.CbLike+"2"))
	require.NoError(t, err)
	assert.Equal(t, "❤️ Лайк отправлен!", resp.Toast)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, textNoCandidates, resp.Replies[0].Text)

	resp, err = f.h.Likes(ctx, msg(2, presenter.BtnLikes))
	require.NoError(t, err)
	assert.Contains(t, resp.Replies[0].Text, "Ann")

	resp, err = f.h.Like(ctx, cb(2, presenter.CbLike+"1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Toast, "мэтч")

	resp, err = f.h.Matches(ctx, msg(1, presenter.BtnMatches))
	require.NoError(t, err)
	assert.Contains(t, resp.Replies[0].Text, "@user2")

	resp, err = f.h.Likes(ctx, msg(2, presenter.BtnLikes))
	require.NoError(t, err)
	assert.NotContains(t, resp.Replies[0].Text, "Ann", "matched likers move to matches")
}

func TestLike_HiddenTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, "Ann")
	f.seed(t, 2, "Bob")

	_, err := f.h.ToggleSetting(ctx, cb(2, presenter.CbHideProfile))
	require.NoError(t, err)

	resp, err := f.h.Like(ctx, cb(1, presenter.CbLike+"2"))
	require.NoError(t, err)
	assert.Contains(t, resp.Toast, "скрыл")

	p, err := f.repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, p.Ledger.LikedByCount())
}

func TestLike_SelfAndGarbage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, "Ann")

	resp, err := f.h.Like(context.Background(), cb(1, presenter.CbLike+"1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Toast, "Себя")

	resp, err = f.h.Like(context.Background(), cb(1, presenter.CbLike+"abc"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Toast)
	assert.Empty(t, resp.Replies)
}

func TestViewLike_DeletedLiker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, "Ann")
	f.seed(t, 2, "Bob")

	_, err := f.h.Like(ctx, cb(2, presenter.CbLike+"1"))
	require.NoError(t, err)

	resp, err := f.h.ViewLike(ctx, cb(1, presenter.CbViewLike+"2"))
	require.NoError(t, err)
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "Bob")

	_, err = f.h.ConfirmDelete(ctx, cb(2, presenter.CbConfirmDelete))
	require.NoError(t, err)

	resp, err = f.h.ViewLike(ctx, cb(1, presenter.CbViewLike+"2"))
	require.NoError(t, err)
	assert.Equal(t, textGone, resp.Toast)
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings, photos, deletion
// ─────────────────────────────────────────────────────────────────────────────

func TestToggleSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, "Ann")

	resp, err := f.h.ToggleSetting(ctx, cb(1, presenter.CbRandomSearch))
	require.NoError(t, err)
	require.Len(t, resp.Replies, 1)
	assert.True(t, resp.Replies[0].Edit)
	assert.Contains(t, resp.Replies[0].Text, "Случайный")

	p, err := f.repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, p.InterestSearch)
	assert.True(t, p.Visible)
}

func TestPhotos_UploadUntilLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, "Ann")

	resp, err := f.h.Photo(ctx, Request{UserID: 1, ChatID: 1, PhotoID: "p0"})
	require.NoError(t, err)
	assert.Contains(t, resp.Replies[0].Text, "Моя анкета", "photo without add_photo is not stored")

	_, err = f.h.AddPhoto(ctx, cb(1, presenter.CbAddPhoto))
	require.NoError(t, err)

	for i := 1; i <= profile.MaxAttachments; i++ {
		_, err := f.h.Photo(ctx, Request{UserID: 1, ChatID: 1, PhotoID: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
	}

	p, err := f.repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, p.Attachments, profile.MaxAttachments)

	_, err = f.sessions.Get(ctx, 1)
	assert.ErrorIs(t, err, session.ErrNoSession, "upload session ends at the limit")

	resp, err = f.h.DeletePhoto(ctx, cb(1, presenter.CbDeletePhoto+"0"))
	require.NoError(t, err)
	assert.True(t, resp.Replies[0].Edit)

	p, err = f.repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p4", "p5"}, p.Attachments)

	resp, err = f.h.DeletePhoto(ctx, cb(1, presenter.CbDeletePhoto+"9"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Toast)
}

func TestPhotos_Disabled(t *testing.T) {
	f := newFixture(t)
	f.h.deps.PhotoUploadsEnabled = func() bool { return false }
	f.seed(t, 1, "Ann")

	resp, err := f.h.ManagePhotos(context.Background(), cb(1, presenter.CbManagePhotos))
	require.NoError(t, err)
	assert.Equal(t, textPhotosDisabled, resp.Toast)
}

func TestConfirmDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 1, "Ann")

	resp, err := f.h.DeleteProfile(ctx, cb(1, presenter.CbDeleteProfile))
	require.NoError(t, err)
	assert.Equal(t, textConfirmDelete, resp.Replies[0].Text)

	_, err = f.h.ConfirmDelete(ctx, cb(1, presenter.CbConfirmDelete))
	require.NoError(t, err)

	_, err = f.repo.Get(ctx, 1)
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
	assert.Equal(t, []int64{1}, f.removed)
}

func TestStats_AdminOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, "Ann")

	resp, err := f.h.Stats(context.Background(), msg(1, ""))
	require.NoError(t, err)
	assert.NotContains(t, resp.Replies[0].Text, "Статистика")

	resp, err = f.h.Stats(context.Background(), msg(999, ""))
	require.NoError(t, err)
	assert.Contains(t, resp.Replies[0].Text, "Анкет всего: 1")
}

func TestFailure_UnexpectedErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	boom := fmt.Errorf("boom")

	resp, err := f.h.failure(cb(1, "x"), "test", boom)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, textFailed, resp.Toast)
	assert.True(t, resp.Alert)
}
