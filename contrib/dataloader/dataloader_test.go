package dataloader

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEntity struct {
	ID   int
	Name string
}

// =============================================================================
// OrderByKeys Tests
// =============================================================================

func TestOrderByKeys(t *testing.T) {
	t.Parallel()

	keyFn := func(e *mockEntity) int { return e.ID }

	t.Run("all keys found", func(t *testing.T) {
		t.Parallel()
		keys := []int{1, 2, 3}
		values := []*mockEntity{
			{ID: 3, Name: "third"},
			{ID: 1, Name: "first"},
			{ID: 2, Name: "second"},
		}

		result, errs := OrderByKeys(keys, values, keyFn)

		require.Len(t, result, 3)
		require.Len(t, errs, 3)
		assert.Equal(t, "first", result[0].Name)
		assert.Equal(t, "second", result[1].Name)
		assert.Equal(t, "third", result[2].Name)
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("some keys missing", func(t *testing.T) {
		t.Parallel()
		keys := []int{1, 2, 3, 4}
		values := []*mockEntity{
			{ID: 1, Name: "first"},
			{ID: 3, Name: "third"},
		}

		result, errs := OrderByKeys(keys, values, keyFn)

		require.Len(t, result, 4)
		require.Len(t, errs, 4)
		assert.Equal(t, "first", result[0].Name)
		assert.Nil(t, result[1])
		assert.Equal(t, "third", result[2].Name)
		assert.Nil(t, result[3])
		assert.NoError(t, errs[0])
		assert.ErrorIs(t, errs[1], ErrNotFound)
		assert.NoError(t, errs[2])
		assert.ErrorIs(t, errs[3], ErrNotFound)
	})

	t.Run("empty keys", func(t *testing.T) {
		t.Parallel()
		keys := []int{}
		values := []*mockEntity{}

		result, errs := OrderByKeys(keys, values, keyFn)

		assert.Empty(t, result)
		assert.Empty(t, errs)
	})

	t.Run("empty values", func(t *testing.T) {
		t.Parallel()
		keys := []int{1, 2, 3}
		values := []*mockEntity{}

		result, errs := OrderByKeys(keys, values, keyFn)

		require.Len(t, result, 3)
		for i, err := range errs {
			assert.ErrorIs(t, err, ErrNotFound, "expected ErrNotFound at index %d", i)
		}
	})

	t.Run("duplicate keys", func(t *testing.T) {
		t.Parallel()
		keys := []int{1, 1, 2}
		values := []*mockEntity{
			{ID: 1, Name: "first"},
			{ID: 2, Name: "second"},
		}

		result, errs := OrderByKeys(keys, values, keyFn)

		require.Len(t, result, 3)
		assert.Equal(t, "first", result[0].Name)
		assert.Equal(t, "first", result[1].Name)
		assert.Equal(t, "second", result[2].Name)
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})
}

// =============================================================================
// GroupByKey Tests
// =============================================================================

func TestGroupByKey(t *testing.T) {
	t.Parallel()

	type post struct {
		ID     int
		UserID int
		Title  string
	}

	keyFn := func(p *post) int { return p.UserID }

	t.Run("groups by key", func(t *testing.T) {
		t.Parallel()
		posts := []*post{
			{ID: 1, UserID: 10, Title: "Post 1"},
			{ID: 2, UserID: 10, Title: "Post 2"},
			{ID: 3, UserID: 20, Title: "Post 3"},
			{ID: 4, UserID: 10, Title: "Post 4"},
		}

		grouped := GroupByKey(posts, keyFn)

		require.Len(t, grouped[10], 3)
		require.Len(t, grouped[20], 1)
		assert.Equal(t, "Post 1", grouped[10][0].Title)
		assert.Equal(t, "Post 2", grouped[10][1].Title)
		assert.Equal(t, "Post 4", grouped[10][2].Title)
		assert.Equal(t, "Post 3", grouped[20][0].Title)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		grouped := GroupByKey([]*post{}, keyFn)
		assert.Empty(t, grouped)
	})
}

func TestOrderGroupsByKeys(t *testing.T) {
	t.Parallel()

	t.Run("orders groups by keys", func(t *testing.T) {
		keys := []int{10, 20, 30}
		groups := map[int][]string{
			10: {"a", "b"},
			20: {"c"},
			// 30 is missing
		}

		result := OrderGroupsByKeys(keys, groups)

		require.Len(t, result, 3)
		assert.Equal(t, []string{"a", "b"}, result[0])
		assert.Equal(t, []string{"c"}, result[1])
		assert.Nil(t, result[2])
	})

	t.Run("empty keys", func(t *testing.T) {
		result := OrderGroupsByKeys([]int{}, map[int][]string{})
		assert.Empty(t, result)
	})
}

// =============================================================================
// Loader Tests
// =============================================================================

func TestUnique(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"b", "a", "c"}, Unique([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Unique[int](nil))
}

func TestLoader(t *testing.T) {
	t.Parallel()

	type post struct {
		ID     int
		UserID int
	}
	posts := []*post{{1, 10}, {2, 20}, {3, 10}, {4, 30}}

	var batches [][]int
	l := New(func(_ context.Context, ids []int) ([]*post, error) {
		batches = append(batches, ids)
		var out []*post
		for _, p := range posts {
			if slices.Contains(ids, p.UserID) {
				out = append(out, p)
			}
		}
		return out, nil
	}, func(p *post) int { return p.UserID }, WithChunkSize(2))

	groups, err := l.LoadGroups(context.Background(), []int{10, 20, 10, 30, 40})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{10, 20}, {30, 40}}, batches, "keys are deduplicated and chunked")
	assert.Len(t, groups[10], 2)
	assert.Len(t, groups[20], 1)
	assert.Len(t, groups[30], 1)
	assert.NotContains(t, groups, 40)

	batches = nil
	result, errs, err := l.Load(context.Background(), []int{30, 40})
	require.NoError(t, err)
	assert.Equal(t, 4, result[0].ID)
	assert.Nil(t, result[1])
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrNotFound)

	batches = nil
	_, err = l.LoadGroups(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestLoader_Error(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	l := New(func(context.Context, []int) ([]int, error) { return nil, boom }, func(v int) int { return v })
	_, err := l.LoadGroups(context.Background(), []int{1})
	assert.ErrorIs(t, err, boom)
	_, _, err = l.Load(context.Background(), []int{1})
	assert.ErrorIs(t, err, boom)
}
