package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

var (
	levelRegion = snowflake.ID(10)
	levelTeam   = snowflake.ID(11)
	levelSquad  = snowflake.ID(12)
)

func threeLevelSelection() *Selection {
	return NewSelection([]snowflake.ID{levelRegion, levelTeam, levelSquad})
}

func TestSelectClearsDeeperLevels(t *testing.T) {
	s := threeLevelSelection()
	s.Select(levelRegion, Pick{NodeID: 1, Name: "EMEA"})
	s.Select(levelTeam, Pick{NodeID: 2, Name: "Platform"})
	s.Select(levelSquad, Pick{NodeID: 3, Name: "Ingest"})
	assert.True(t, s.Complete())

	// re-picking the top level drops everything beneath it
	s.Select(levelRegion, Pick{NodeID: 4, Name: "APAC"})

	assert.False(t, s.Complete())
	_, teamPicked := s.Picked(levelTeam)
	assert.False(t, teamPicked)
	assert.Equal(t, "4", s.Path())
}

func TestSelectZeroNodeClearsLevel(t *testing.T) {
	s := threeLevelSelection()
	s.Select(levelRegion, Pick{NodeID: 1, Name: "EMEA"})
	s.Select(levelTeam, Pick{NodeID: 2, Name: "Platform"})

	s.Select(levelRegion, Pick{})

	assert.Equal(t, "", s.Path())
	assert.Equal(t, "", s.PathNames())
}

func TestPathJoinsTopToBottom(t *testing.T) {
	s := threeLevelSelection()
	s.Select(levelRegion, Pick{NodeID: 1, Name: "EMEA"})
	s.Select(levelTeam, Pick{NodeID: 2, Name: "Platform"})
	s.Select(levelSquad, Pick{NodeID: 3, Name: "Ingest"})

	assert.Equal(t, "1/2/3", s.Path())
	assert.Equal(t, "EMEA > Platform > Ingest", s.PathNames())
}

func TestEmitRequiredWaitsForLeaf(t *testing.T) {
	s := threeLevelSelection()
	s.Select(levelRegion, Pick{NodeID: 1, Name: "EMEA"})

	_, ok := s.Emit(ModeRequired)
	assert.False(t, ok)

	path, ok := s.Emit(ModeOptional)
	assert.True(t, ok)
	assert.Equal(t, "1", path)

	s.Select(levelTeam, Pick{NodeID: 2, Name: "Platform"})
	s.Select(levelSquad, Pick{NodeID: 3, Name: "Ingest"})

	path, ok = s.Emit(ModeRequired)
	assert.True(t, ok)
	assert.Equal(t, "1/2/3", path)
}

func TestEmitEmptySelection(t *testing.T) {
	s := threeLevelSelection()

	_, ok := s.Emit(ModeOptional)
	assert.False(t, ok)

	empty := NewSelection(nil)
	assert.False(t, empty.Complete())
	_, ok = empty.Emit(ModeRequired)
	assert.False(t, ok)
}
