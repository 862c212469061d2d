package query_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/query"
)

type staticLoader struct {
	idx crawler.BoardIndex
	err error
}

func (l staticLoader) Load(context.Context) (crawler.BoardIndex, error) {
	return l.idx, l.err
}

func engineFor(boards ...crawler.Board) *query.Engine {
	return query.NewEngine(staticLoader{idx: crawler.BoardIndex{GeneratedAt: "2025-01-01T00:00:00Z", Boards: boards}}, nil)
}

func names(boards []crawler.Board) []string {
	out := make([]string, len(boards))
	for i, b := range boards {
		out[i] = b.Name
	}
	return out
}

func TestFuzzyRanking(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "魔兽世界", FID: "7"},
		crawler.Board{Name: "炉石传说", FID: "422"},
	)
	res := e.Query(context.Background(), "炉石", 3)
	require.True(t, res.Success)
	assert.Equal(t, query.TypeFuzzy, res.QueryType)
	assert.Equal(t, []string{"炉石传说", "魔兽世界"}, names(res.Results))
	assert.Equal(t, 2, res.TopK)
}

func TestCategoryBeatsFuzzy(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "炉石传说", CategoryL1: "网络游戏", CategoryL2: "暴雪游戏"},
		crawler.Board{Name: "魔兽世界", CategoryL1: "网络游戏", CategoryL2: "暴雪游戏"},
		crawler.Board{Name: "艾尔登法环", CategoryL1: "单机游戏"},
		crawler.Board{Name: "水区", CategoryL1: "综合"},
	)

	res := e.Query(context.Background(), "暴雪", 1)
	assert.Equal(t, query.TypeCategory, res.QueryType)
	assert.Equal(t, []string{"炉石传说", "魔兽世界"}, names(res.Results), "category matches are not capped by topk")

	res = e.Query(context.Background(), "游戏", 1)
	assert.Equal(t, query.TypeCategory, res.QueryType)
	assert.Len(t, res.Results, 3)

	res = e.Query(context.Background(), "综合讨论区", 1)
	assert.Equal(t, query.TypeCategory, res.QueryType, "a category inside the needle matches too")
	assert.Equal(t, []string{"水区"}, names(res.Results))
}

func TestCategoryMatchIgnoresCase(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "DOTA2", CategoryL1: "MOBA Games"},
		crawler.Board{Name: "水区"},
	)
	res := e.Query(context.Background(), "moba", 3)
	assert.Equal(t, query.TypeCategory, res.QueryType)
	assert.Equal(t, []string{"DOTA2"}, names(res.Results))
}

func TestEmptyCategoriesNeverMatch(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "a"},
		crawler.Board{Name: "b"},
	)
	res := e.Query(context.Background(), "anything", 3)
	assert.Equal(t, query.TypeFuzzy, res.QueryType)

	res = e.Query(context.Background(), "  ", 3)
	assert.Equal(t, query.TypeFuzzy, res.QueryType)
}

func TestFuzzyScoresChildNames(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "暴雪游戏综合", Forums: []crawler.ForumRef{{Name: "酒馆战棋"}}},
		crawler.Board{Name: "酒馆", FID: "x"},
		crawler.Board{Name: "其他", Collections: []crawler.CollectionRef{{Name: "酒馆战棋攻略"}}},
	)
	res := e.Query(context.Background(), "酒馆战棋", 3)
	assert.Equal(t, []string{"暴雪游戏综合", "其他", "酒馆"}, names(res.Results))
}

func TestFuzzyTopKAndTies(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "bb"},
		crawler.Board{Name: "ab"},
		crawler.Board{Name: ""},
		crawler.Board{Name: "ac"},
	)
	res := e.Query(context.Background(), "a", 0)
	assert.Equal(t, []string{"ab"}, names(res.Results), "topk below one still returns one")

	res = e.Query(context.Background(), "a", 10)
	assert.Equal(t, []string{"ab", "ac", "bb", ""}, names(res.Results), "nameless boards sort last")
}

func TestQueryWithoutIndex(t *testing.T) {
	t.Parallel()

	for _, err := range []error{crawler.ErrIndexNotFound, fmt.Errorf("wrapped: %w", crawler.ErrMalformedIndex)} {
		e := query.NewEngine(staticLoader{err: err}, nil)
		res := e.Query(context.Background(), "炉石", 3)
		assert.False(t, res.Success)
		assert.Equal(t, crawler.CodeIndexNotFound, res.Error)
		assert.NotNil(t, res.Results)

		st := e.Structure(context.Background())
		assert.False(t, st.Success)
		assert.Equal(t, crawler.CodeIndexNotFound, st.Error)
	}
}

func TestStructureGroups(t *testing.T) {
	t.Parallel()

	e := engineFor(
		crawler.Board{Name: "炉石传说", FID: "422", CategoryL1: "游戏", CategoryL2: "暴雪"},
		crawler.Board{Name: "魔兽世界", FID: "7", CategoryL1: "游戏"},
		crawler.Board{Name: "水区", FID: "-7", CategoryL1: "生活"},
		crawler.Board{Name: "孤儿", FID: "1"},
	)
	st := e.Structure(context.Background())
	require.True(t, st.Success)
	assert.Equal(t, 3, st.TotalCategories)
	assert.Equal(t, "2025-01-01T00:00:00Z", st.GeneratedAt)
	assert.Len(t, st.Structure["游戏"]["暴雪"], 1)
	assert.Len(t, st.Structure["游戏"][query.DirectBoardsKey], 1)
	assert.Equal(t, "-7", st.Structure["生活"][query.DirectBoardsKey][0].FID)
	assert.Len(t, st.Structure[query.UngroupedCategory][query.DirectBoardsKey], 1)
}

func TestNamelessBoardRanksLast(t *testing.T) {
	t.Parallel()

	e := engineFor(crawler.Board{FID: "1"}, crawler.Board{Name: "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", FID: "2"})
	res := e.Query(context.Background(), "a", 2)
	require.Len(t, res.Results, 2)
	assert.Equal(t, []string{"2", "1"}, []string{res.Results[0].FID, res.Results[1].FID})
}
