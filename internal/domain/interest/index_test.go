package interest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps([]string{"CS2", "Dota 2"}, []string{"dota 2"}))
	assert.True(t, Overlaps([]string{" Valorant "}, []string{"LOL", "valorant"}))
	assert.False(t, Overlaps([]string{"CS2"}, []string{"Minecraft"}))
	assert.False(t, Overlaps(nil, []string{"Minecraft"}))
	assert.False(t, Overlaps([]string{"CS2"}, nil))
	assert.False(t, Overlaps([]string{""}, []string{""}))
}

func TestShared(t *testing.T) {
	shared := Shared([]string{"CS2", "Dota 2", "cs2", "Fortnite"}, []string{"fortnite", "CS2"})
	assert.Equal(t, []string{"CS2", "Fortnite"}, shared)
	assert.Empty(t, Shared([]string{"CS2"}, []string{"PUBG"}))
}

func TestNewSet(t *testing.T) {
	s := NewSet([]string{"PUBG", "pubg ", "", "  ", "Roblox"})
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("ROBLOX"))
	assert.Equal(t, []string{"PUBG", "Roblox"}, s.Tags())
}
