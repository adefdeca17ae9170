package engine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unapproachable/fairgame-fork/pkg/models"
)

func trackedItems() []models.TrackedItem {
	return []models.TrackedItem{
		{ID: "A1", GroupID: "gpu", MaxPrice: 100, Condition: models.New},
		{ID: "A2", GroupID: "gpu", MaxPrice: 100, Condition: models.New},
		{ID: "B1", GroupID: "console", MaxPrice: 500, Condition: models.New},
		{ID: "A3", GroupID: "gpu", MaxPrice: 100, Condition: models.New},
		{ID: "C1", GroupID: "cpu", MaxPrice: 300, Condition: models.New},
	}
}

func ids(items []models.TrackedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRemoveGroupRemovesWholeGroupOnly(t *testing.T) {
	s := NewHuntState(trackedItems())
	require.Equal(t, 5, s.Len())
	require.Equal(t, 3, s.Groups())

	removed := s.RemoveGroup("gpu")
	assert.ElementsMatch(t, []string{"A1", "A2", "A3"}, ids(removed))
	assert.Equal(t, []string{"B1", "C1"}, ids(s.Active()))
	assert.False(t, s.IsActive(models.TrackedItem{ID: "A2", GroupID: "gpu"}))
	assert.True(t, s.IsActive(models.TrackedItem{ID: "B1", GroupID: "console"}))

	// removing an unknown group changes nothing
	assert.Empty(t, s.RemoveGroup("missing"))
	assert.Equal(t, 2, s.Len())
}

func TestRemoveGroupEveryMember(t *testing.T) {
	// purchasing any one member withdraws the same set
	for _, bought := range []string{"A1", "A2", "A3"} {
		t.Run(bought, func(t *testing.T) {
			s := NewHuntState(trackedItems())
			var group string
			for _, it := range s.Active() {
				if it.ID == bought {
					group = it.GroupID
				}
			}
			s.RemoveGroup(group)
			assert.Equal(t, []string{"B1", "C1"}, ids(s.Active()))
		})
	}
}

func TestActiveIsSnapshot(t *testing.T) {
	s := NewHuntState(trackedItems())
	snap := s.Active()
	s.RemoveGroup("console")
	assert.Len(t, snap, 5)
	assert.Equal(t, 4, s.Len())
}

func TestShuffleKeepsMembers(t *testing.T) {
	s := NewHuntState(trackedItems())
	s.Shuffle(rand.New(rand.NewPCG(1, 2)))
	assert.ElementsMatch(t, ids(trackedItems()), ids(s.Active()))

	s.RemoveGroup("gpu")
	s.Shuffle(nil)
	assert.ElementsMatch(t, []string{"B1", "C1"}, ids(s.Active()))
}

func TestEngineErrorMatching(t *testing.T) {
	err := SessionFatal("recycle failed", errors.New("chrome exited"))
	assert.True(t, errors.Is(err, ErrSessionFatal))
	assert.True(t, IsFatal(err))
	assert.False(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "SESSION_FATAL")

	cfgErr := ConfigError("empty item list", nil).WithDetail("path", "items.json")
	assert.True(t, errors.Is(cfgErr, ErrConfig))
	assert.Equal(t, "items.json", cfgErr.Details["path"])

	var ee *EngineError
	wrapped := errors.Join(errors.New("context"), cfgErr)
	require.True(t, errors.As(wrapped, &ee))
	assert.Equal(t, ErrCodeConfig, ee.Code)
}
