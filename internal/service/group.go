package service

import (
	"sort"

	"contextiq/internal/domain"
)

const unknownDocument = "unknown_doc"

// documentGroup is the retrieved evidence of one document, in retrieval order.
type documentGroup struct {
	key    string
	texts  []string
	scores []float64
	source domain.Source
	pages  map[int]struct{}
}

// documentKey is the first non-empty of document name, title and file name.
func documentKey(meta domain.ChunkMeta) string {
	for _, k := range []string{meta.DocumentName, meta.DocumentTitle, meta.SourceFileName} {
		if k != "" {
			return k
		}
	}
	return unknownDocument
}

// groupByDocument buckets results by document in order of first appearance
// and collects each document's sorted, deduplicated page set.
func groupByDocument(results []domain.RetrievalResult) []*documentGroup {
	var groups []*documentGroup
	byKey := map[string]*documentGroup{}
	for _, r := range results {
		meta := r.Chunk.Meta
		key := documentKey(meta)
		g, ok := byKey[key]
		if !ok {
			g = &documentGroup{
				key: key,
				source: domain.Source{
					DocumentName:   key,
					SourceFileName: meta.SourceFileName,
					SourcePath:     meta.SourcePath,
				},
				pages: map[int]struct{}{},
			}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.texts = append(g.texts, r.Chunk.Text)
		g.scores = append(g.scores, r.Score)
		if meta.Page != nil {
			g.pages[*meta.Page] = struct{}{}
		}
	}
	for _, g := range groups {
		g.source.Pages = make([]int, 0, len(g.pages))
		for p := range g.pages {
			g.source.Pages = append(g.source.Pages, p)
		}
		sort.Ints(g.source.Pages)
	}
	return groups
}
