package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/query"
)

// previewLimit caps the child names shown per query hit.
const previewLimit = 5

// writeJSON renders v indented, keeping CJK text readable.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

type categoryCount struct {
	name  string
	count int
}

// categoryCounts tallies boards per category_l1, largest first, ties by name.
func categoryCounts(boards []crawler.Board) []categoryCount {
	tally := make(map[string]int)
	for _, b := range boards {
		name := strings.TrimSpace(b.CategoryL1)
		if name == "" {
			name = query.UngroupedCategory
		}
		tally[name]++
	}
	out := make([]categoryCount, 0, len(tally))
	for name, n := range tally {
		out = append(out, categoryCount{name: name, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func writeBuildSummary(w io.Writer, path string, idx crawler.BoardIndex) {
	fmt.Fprintf(w, "索引已生成: %s，板块数: %d\n", path, len(idx.Boards))
	fmt.Fprintln(w, "分类统计：")
	for _, c := range categoryCounts(idx.Boards) {
		fmt.Fprintf(w, "  - %s: %d\n", c.name, c.count)
	}
}

func writeQueryResult(w io.Writer, res query.Result) {
	if !res.Success {
		fmt.Fprintf(w, "查询失败: %s\n", res.Error)
		return
	}
	fmt.Fprintf(w, "查询: %s，命中 %d 个\n", res.Query, len(res.Results))
	for i, b := range res.Results {
		fmt.Fprintf(w, "[%d] %s (fid=%s)\n", i+1, b.Name, b.FID)
		fmt.Fprintf(w, "    URL: %s\n", b.URL)
		if names := forumNames(b.Forums); len(names) > 0 {
			fmt.Fprintf(w, "    板面: %s\n", strings.Join(names, ", "))
		}
		if names := collectionNames(b.Collections); len(names) > 0 {
			fmt.Fprintf(w, "    合集: %s\n", strings.Join(names, ", "))
		}
	}
}

func forumNames(refs []crawler.ForumRef) []string {
	out := make([]string, 0, min(len(refs), previewLimit))
	for _, r := range refs[:min(len(refs), previewLimit)] {
		out = append(out, r.Name)
	}
	return out
}

func collectionNames(refs []crawler.CollectionRef) []string {
	out := make([]string, 0, min(len(refs), previewLimit))
	for _, r := range refs[:min(len(refs), previewLimit)] {
		out = append(out, r.Name)
	}
	return out
}
