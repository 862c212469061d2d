// Package query answers board lookups against the persisted index: category
// containment first, edit-distance ranking otherwise.
package query

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/metrics"
)

// Query types reported on results.
const (
	TypeCategory = "category"
	TypeFuzzy    = "fuzzy"
)

// Structure labels.
const (
	UngroupedCategory = "(未分组)"
	DirectBoardsKey   = "_direct_boards"
)

// DefaultTopK is the fuzzy result count when none is requested.
const DefaultTopK = 3

// Loader supplies the current index.
type Loader interface {
	Load(ctx context.Context) (crawler.BoardIndex, error)
}

// Result is returned by Engine.Query.
type Result struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Query     string          `json:"query"`
	QueryType string          `json:"query_type,omitempty"`
	TopK      int             `json:"topk"`
	Results   []crawler.Board `json:"results"`
}

// BoardSummary is a board as listed in the structure view.
type BoardSummary struct {
	Name        string `json:"name"`
	FID         string `json:"fid"`
	Description string `json:"description"`
}

// StructureResult groups boards by category_l1 then category_l2; boards
// without a category_l2 sit under DirectBoardsKey.
type StructureResult struct {
	Success         bool                                 `json:"success"`
	Error           string                               `json:"error,omitempty"`
	Structure       map[string]map[string][]BoardSummary `json:"structure,omitempty"`
	TotalCategories int                                  `json:"total_categories"`
	GeneratedAt     string                               `json:"generated_at,omitempty"`
}

// Engine runs queries. The index is reloaded on every call so a rebuilt
// document is picked up without a restart.
type Engine struct {
	loader Loader
	logger *zap.Logger
}

// NewEngine builds an Engine over loader.
func NewEngine(loader Loader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{loader: loader, logger: logger}
}

// Query resolves name against the index. Boards whose category contains the
// needle, or is contained in it, are all returned; otherwise the max(1, topk)
// boards nearest by edit distance are.
func (e *Engine) Query(ctx context.Context, name string, topk int) Result {
	idx, err := e.loader.Load(ctx)
	if err != nil {
		e.logger.Warn("index unavailable", zap.Error(err))
		return Result{Error: crawler.ErrorCode(err), Query: name, Results: []crawler.Board{}}
	}
	needle := fold(name)

	if matches := byCategory(idx.Boards, needle); len(matches) > 0 {
		metrics.ObserveQuery(TypeCategory)
		return Result{Success: true, Query: name, QueryType: TypeCategory, TopK: len(matches), Results: matches}
	}

	type scored struct {
		score int
		board crawler.Board
	}
	ranked := make([]scored, 0, len(idx.Boards))
	for _, b := range idx.Boards {
		ranked = append(ranked, scored{score: score(b, needle), board: b})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].board.Name < ranked[j].board.Name
	})
	n := min(max(1, topk), len(ranked))
	results := make([]crawler.Board, 0, n)
	for _, r := range ranked[:n] {
		results = append(results, r.board)
	}
	metrics.ObserveQuery(TypeFuzzy)
	return Result{Success: true, Query: name, QueryType: TypeFuzzy, TopK: len(results), Results: results}
}

// byCategory skips empty categories, and an empty needle matches nothing.
func byCategory(boards []crawler.Board, needle string) []crawler.Board {
	if needle == "" {
		return nil
	}
	var out []crawler.Board
	for _, b := range boards {
		l1 := fold(b.CategoryL1)
		l2 := fold(b.CategoryL2)
		if containsEither(l1, needle) || containsEither(l2, needle) {
			out = append(out, b)
		}
	}
	return out
}

func containsEither(category, needle string) bool {
	if category == "" {
		return false
	}
	return strings.Contains(category, needle) || strings.Contains(needle, category)
}

// score is the smallest distance from needle to the board's name or any
// child name; boards with no names score math.MaxInt.
func score(b crawler.Board, needle string) int {
	best := math.MaxInt
	consider := func(name string) {
		if n := fold(name); n != "" {
			best = min(best, Distance(needle, n))
		}
	}
	consider(b.Name)
	for _, f := range b.Forums {
		consider(f.Name)
	}
	for _, c := range b.Collections {
		consider(c.Name)
	}
	return best
}

// fold lower-cases s. Casers are stateful, so each call takes its own.
func fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// Structure groups the index by category.
func (e *Engine) Structure(ctx context.Context) StructureResult {
	idx, err := e.loader.Load(ctx)
	if err != nil {
		e.logger.Warn("index unavailable", zap.Error(err))
		return StructureResult{Error: crawler.ErrorCode(err)}
	}
	structure := make(map[string]map[string][]BoardSummary)
	for _, b := range idx.Boards {
		l1 := strings.TrimSpace(b.CategoryL1)
		if l1 == "" {
			l1 = UngroupedCategory
		}
		l2 := strings.TrimSpace(b.CategoryL2)
		if l2 == "" {
			l2 = DirectBoardsKey
		}
		group := structure[l1]
		if group == nil {
			group = make(map[string][]BoardSummary)
			structure[l1] = group
		}
		group[l2] = append(group[l2], BoardSummary{
			Name:        strings.TrimSpace(b.Name),
			FID:         b.FID,
			Description: b.Description,
		})
	}
	metrics.ObserveQuery("structure")
	return StructureResult{
		Success:         true,
		Structure:       structure,
		TotalCategories: len(structure),
		GeneratedAt:     idx.GeneratedAt,
	}
}
