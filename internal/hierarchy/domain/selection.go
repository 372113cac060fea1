package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Mode controls when a selection emits a value.
type Mode string

const (
	// ModeRequired emits only once every level down to the leaf is
	// selected.
	ModeRequired Mode = "required"
	// ModeOptional emits the partial path as soon as anything is
	// selected.
	ModeOptional Mode = "optional"
)

// Pick is a selected node at one level.
type Pick struct {
	NodeID snowflake.ID
	Name   string
}

// Selection tracks one choice per level over an ordered set of levels.
// It is a pure value; persistence and transport stay outside.
type Selection struct {
	levels []snowflake.ID
	picks  map[snowflake.ID]Pick
}

func NewSelection(levels []snowflake.ID) *Selection {
	return &Selection{
		levels: levels,
		picks:  make(map[snowflake.ID]Pick, len(levels)),
	}
}

// Select records a pick at levelID and clears every deeper level, since
// a choice higher up invalidates anything chosen beneath it. A zero
// NodeID clears the level itself.
func (s *Selection) Select(levelID snowflake.ID, pick Pick) {
	found := false
	for _, id := range s.levels {
		if id == levelID {
			found = true
			if pick.NodeID == 0 {
				delete(s.picks, id)
			} else {
				s.picks[id] = pick
			}
			continue
		}
		if found {
			delete(s.picks, id)
		}
	}
}

// Picked returns the pick at levelID, if any.
func (s *Selection) Picked(levelID snowflake.ID) (Pick, bool) {
	pick, ok := s.picks[levelID]
	return pick, ok
}

// Complete reports whether the leaf level has a selection.
func (s *Selection) Complete() bool {
	if len(s.levels) == 0 {
		return false
	}
	_, ok := s.picks[s.levels[len(s.levels)-1]]
	return ok
}

// Path joins the selected node ids with slashes, walking levels top to
// bottom and skipping levels without a selection.
func (s *Selection) Path() string {
	parts := make([]string, 0, len(s.levels))
	for _, id := range s.levels {
		if pick, ok := s.picks[id]; ok {
			parts = append(parts, pick.NodeID.String())
		}
	}
	return strings.Join(parts, "/")
}

// PathNames is the human-readable counterpart of Path.
func (s *Selection) PathNames() string {
	parts := make([]string, 0, len(s.levels))
	for _, id := range s.levels {
		if pick, ok := s.picks[id]; ok {
			parts = append(parts, pick.Name)
		}
	}
	return strings.Join(parts, " > ")
}

// Emit returns the selection's value under the given mode. Required
// mode withholds the value until the selection is complete.
func (s *Selection) Emit(mode Mode) (string, bool) {
	if mode == ModeRequired && !s.Complete() {
		return "", false
	}
	path := s.Path()
	if path == "" {
		return "", false
	}
	return path, true
}
