package retrieval

import (
	"fmt"
	"sort"
	"strings"
)

// Fuse merges the ranked lists produced by parallel retrieval legs into a
// single ranking. A document appearing in several lists is kept once with its
// highest score. Results are ordered by similarity descending; equal scores
// fall back to ID ascending so the ranking is stable across runs. When
// topK > 0 the ranking is truncated to topK entries.
func Fuse(lists [][]Result, topK int) []Result {
	best := make(map[string]Result)
	for _, list := range lists {
		for _, res := range list {
			if existing, ok := best[res.ID]; !ok || res.Similarity > existing.Similarity {
				best[res.ID] = res
			}
		}
	}

	fused := make([]Result, 0, len(best))
	for _, res := range best {
		fused = append(fused, res)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Similarity != fused[j].Similarity {
			return fused[i].Similarity > fused[j].Similarity
		}
		return fused[i].ID < fused[j].ID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

// ContextText renders fused results as a single grounding block for the
// model prompt. Fragments are separated so the model can cite them
// individually.
func ContextText(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		if res.Title != "" {
			sb.WriteString(fmt.Sprintf("Source: %s\n", res.Title))
		}
		sb.WriteString(res.Content)
	}
	return sb.String()
}
