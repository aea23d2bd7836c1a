package profile

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/domain/shared"
)

func validDetails() Details {
	return Details{
		Username:  "@nagibator",
		Name:      "  Артём ",
		Age:       19,
		Region:    RegionRU,
		Platform:  PlatformPC,
		About:     "ищу тиму",
		Interests: []string{"Dota 2", "dota 2", "CS2"},
	}
}

func TestNew_Defaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := New(42, validDetails(), now)
	require.NoError(t, err)

	assert.True(t, p.Visible)
	assert.True(t, p.InterestSearch)
	assert.Equal(t, "nagibator", p.Username)
	assert.Equal(t, "Артём", p.Name)
	assert.Equal(t, []string{"CS2", "Dota 2"}, p.Interests)
	assert.Empty(t, p.Attachments)
	assert.Equal(t, 0, p.Ledger.LikedCount())
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, "@nagibator", p.Mention())
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d *Details)
		want   error
	}{
		{"short name", func(d *Details) { d.Name = "A" }, ErrInvalidName},
		{"long name", func(d *Details) { d.Name = strings.Repeat("я", MaxNameLength+1) }, ErrInvalidName},
		{"young", func(d *Details) { d.Age = 12 }, ErrInvalidAge},
		{"old", func(d *Details) { d.Age = 101 }, ErrInvalidAge},
		{"region", func(d *Details) { d.Region = "AS" }, ErrInvalidRegion},
		{"platform", func(d *Details) { d.Platform = "Switch" }, ErrInvalidPlatform},
		{"interests", func(d *Details) { d.Interests = []string{" "} }, ErrNoInterests},
		{"about", func(d *Details) { d.About = strings.Repeat("x", MaxAboutLength+1) }, ErrAboutTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDetails()
			tc.mutate(&d)
			_, err := New(1, d, time.Now())
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, shared.IsValidation(err))
		})
	}

	_, err := New(0, validDetails(), time.Now())
	assert.ErrorIs(t, err, ErrInvalidProfileID)
}

func TestNew_AgeIsOptional(t *testing.T) {
	d := validDetails()
	d.Age = 0
	_, err := New(1, d, time.Now())
	assert.NoError(t, err)
}

func TestApplyDetails_KeepsLedgerFlagsAndPhotos(t *testing.T) {
	a, err := New(1, validDetails(), time.Now())
	require.NoError(t, err)
	b, err := New(2, validDetails(), time.Now())
	require.NoError(t, err)
	_, err = RecordLike(a, b)
	require.NoError(t, err)
	require.NoError(t, a.AddAttachment("photo-1", time.Now()))
	a.SetVisible(false, time.Now())

	d := validDetails()
	d.Name = "Новое имя"
	require.NoError(t, a.ApplyDetails(d, time.Now()))

	assert.Equal(t, "Новое имя", a.Name)
	assert.True(t, a.Ledger.HasLiked(2))
	assert.Equal(t, 1, a.Ledger.LikedCount())
	assert.False(t, a.Visible)
	assert.Equal(t, []string{"photo-1"}, a.Attachments)
}

func TestAttachments_Cap(t *testing.T) {
	p, err := New(1, validDetails(), time.Now())
	require.NoError(t, err)

	for i := 0; i < MaxAttachments; i++ {
		require.NoError(t, p.AddAttachment(fmt.Sprintf("photo-%d", i), time.Now()))
	}
	before := append([]string(nil), p.Attachments...)

	err = p.AddAttachment("photo-6", time.Now())
	assert.ErrorIs(t, err, ErrAttachmentLimit)
	assert.Equal(t, before, p.Attachments)
	assert.Equal(t, 0, p.AttachmentSlotsLeft())
}

func TestAttachments_RemoveKeepsOrder(t *testing.T) {
	p, err := New(1, validDetails(), time.Now())
	require.NoError(t, err)
	for _, ref := range []string{"a", "b", "c", "d"} {
		require.NoError(t, p.AddAttachment(ref, time.Now()))
	}

	removed, err := p.RemoveAttachment(1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "b", removed)
	assert.Equal(t, []string{"a", "c", "d"}, p.Attachments)

	_, err = p.RemoveAttachment(3, time.Now())
	assert.ErrorIs(t, err, ErrAttachmentIndex)
	_, err = p.RemoveAttachment(-1, time.Now())
	assert.ErrorIs(t, err, ErrAttachmentIndex)

	assert.Equal(t, 3, p.ClearAttachments(time.Now()))
	assert.Empty(t, p.Attachments)
	assert.Equal(t, 0, p.ClearAttachments(time.Now()))
}

func TestAttachments_RejectsEmptyRef(t *testing.T) {
	p, err := New(1, validDetails(), time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, p.AddAttachment("  ", time.Now()), ErrAttachmentEmpty)
}

func TestSettingsToggles(t *testing.T) {
	p, err := New(1, validDetails(), time.Now())
	require.NoError(t, err)

	assert.False(t, p.SetVisible(true, time.Now()))
	assert.True(t, p.SetVisible(false, time.Now()))
	assert.False(t, p.Visible)

	assert.True(t, p.SetInterestSearch(false, time.Now()))
	assert.False(t, p.InterestSearch)
	assert.False(t, p.SetInterestSearch(false, time.Now()))
}
