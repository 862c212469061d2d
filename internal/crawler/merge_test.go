package crawler

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePostsDedupAndOrder(t *testing.T) {
	t.Parallel()

	posts := []Post{
		{PID: "3", Floor: intPtr(3), Content: "third"},
		{PID: "", Floor: nil, Content: "orphan"},
		{PID: "1", Floor: intPtr(1), Content: "first"},
		{PID: "3", Floor: intPtr(3), Content: "third again"},
		{PID: "", Floor: intPtr(2), Content: "anon a"},
		{PID: "", Floor: intPtr(2), Content: "anon b"},
		{PID: "0", Floor: intPtr(0), Content: "op"},
	}

	merged := MergePosts(posts, 0)
	contents := make([]string, 0, len(merged))
	for _, p := range merged {
		contents = append(contents, p.Content)
	}
	assert.Equal(t, []string{"op", "first", "anon a", "anon b", "third", "orphan"}, contents)
}

func TestMergePostsCapKeepsLowestFloors(t *testing.T) {
	t.Parallel()

	posts := []Post{
		{PID: "9", Floor: intPtr(9)},
		{PID: "4", Floor: intPtr(4)},
		{PID: "x"},
		{PID: "1", Floor: intPtr(1)},
	}
	merged := MergePosts(posts, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, 1, *merged[0].Floor)
	assert.Equal(t, 4, *merged[1].Floor)
}

func TestMergePostsEmptyIsNotNil(t *testing.T) {
	t.Parallel()

	merged := MergePosts(nil, 5)
	require.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestMergePostsRandomizedInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		var posts []Post
		distinct := map[string]struct{}{}
		anonymous := 0
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			p := Post{}
			if rng.Intn(4) > 0 {
				p.PID = strconv.Itoa(rng.Intn(15))
				distinct[p.PID] = struct{}{}
			} else {
				anonymous++
			}
			if rng.Intn(6) > 0 {
				p.Floor = intPtr(rng.Intn(30))
			}
			posts = append(posts, p)
		}
		limit := rng.Intn(10)

		merged := MergePosts(posts, limit)
		total := len(distinct) + anonymous
		if limit > 0 {
			require.Len(t, merged, min(limit, total))
		} else {
			require.Len(t, merged, total)
		}

		seen := map[string]struct{}{}
		for i, p := range merged {
			if p.PID != "" {
				_, dup := seen[p.PID]
				require.False(t, dup, "duplicate pid %s", p.PID)
				seen[p.PID] = struct{}{}
			}
			if i > 0 {
				require.LessOrEqual(t, floorKey(merged[i-1]), floorKey(p))
			}
		}
	}
}
