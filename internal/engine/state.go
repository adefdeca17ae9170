package engine

import (
	"math/rand/v2"
	"time"

	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// HuntState is the working set of items still being hunted plus per-run
// counters. It only shrinks during a run. It is owned by the hunt loop and
// is not safe for concurrent use.
type HuntState struct {
	items   []models.TrackedItem
	removed map[string]bool

	Checks    int
	Passes    int
	Purchases int
	Started   time.Time
}

// NewHuntState builds the state from items in configuration order.
func NewHuntState(items []models.TrackedItem) *HuntState {
	s := &HuntState{
		items:   make([]models.TrackedItem, len(items)),
		removed: make(map[string]bool),
		Started: time.Now(),
	}
	copy(s.items, items)
	return s
}

// Active returns a snapshot of the items still hunted, in visiting order.
func (s *HuntState) Active() []models.TrackedItem {
	out := make([]models.TrackedItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len is the number of items still hunted.
func (s *HuntState) Len() int { return len(s.items) }

// Empty reports whether nothing is left to hunt.
func (s *HuntState) Empty() bool { return len(s.items) == 0 }

// IsActive reports whether item's group is still being hunted.
func (s *HuntState) IsActive(item models.TrackedItem) bool {
	return !s.removed[item.GroupID]
}

// Groups returns the number of distinct groups still hunted.
func (s *HuntState) Groups() int {
	seen := make(map[string]struct{})
	for _, it := range s.items {
		seen[it.GroupID] = struct{}{}
	}
	return len(seen)
}

// RemoveGroup withdraws every item sharing groupID and returns them.
func (s *HuntState) RemoveGroup(groupID string) []models.TrackedItem {
	var removed []models.TrackedItem
	kept := s.items[:0]
	for _, it := range s.items {
		if it.GroupID == groupID {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	// clear the tail so removed items are not retained by the backing array
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = models.TrackedItem{}
	}
	s.items = kept
	if len(removed) > 0 {
		s.removed[groupID] = true
	}
	return removed
}

// Shuffle randomizes the visiting order for the next pass.
func (s *HuntState) Shuffle(r *rand.Rand) {
	if r == nil {
		rand.Shuffle(len(s.items), func(i, j int) { s.items[i], s.items[j] = s.items[j], s.items[i] })
		return
	}
	r.Shuffle(len(s.items), func(i, j int) { s.items[i], s.items[j] = s.items[j], s.items[i] })
}

// Runtime is the time since the hunt started.
func (s *HuntState) Runtime() time.Duration {
	return time.Since(s.Started)
}
