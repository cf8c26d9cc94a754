package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"docspace/internal/embedding"
)

// SearchResult is one ranked chunk. Score is a [0,1] display score:
// rescaled cosine similarity, or a term-overlap ratio when the engine
// fell back to lexical matching. Results are ephemeral, never persisted.
type SearchResult struct {
	ChunkID    uint    `json:"chunk_id"`
	FileID     uint    `json:"file_id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	SourceLine int     `json:"source_line"`
	Provider   string  `json:"provider"`
}

// SearchService scores a workspace's chunks against a query. A chunk
// is only ever compared to a query vector from its own provider, so a
// workspace holding chunks from both profiles (fallback occurred on
// some files) embeds the query once per distinct provider tag.
type SearchService struct {
	chunks     ChunkStore
	workspaces WorkspaceStore
	providers  map[string]embedding.Provider
	cache      SearchCache

	defaultTopK int
	maxTopK     int
}

func NewSearchService(
	chunks ChunkStore,
	workspaces WorkspaceStore,
	providers map[string]embedding.Provider,
	cache SearchCache,
	defaultTopK, maxTopK int,
) *SearchService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK <= 0 {
		maxTopK = 50
	}
	return &SearchService{
		chunks:      chunks,
		workspaces:  workspaces,
		providers:   providers,
		cache:       cache,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

func (s *SearchService) DefaultTopK() int { return s.defaultTopK }

// Search returns up to topK chunks ranked by descending score. A
// workspace with no ready files yields an empty list, not an error.
func (s *SearchService) Search(ctx context.Context, userID, workspaceID uint, query string, topK int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", ErrInvalidQuery)
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}
	if workspaceID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}

	ok, err := s.workspaces.IsMember(workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWorkspaceAccess
	}

	if cached, hit, err := s.cache.GetResults(ctx, workspaceID, query, topK); err != nil {
		log.Printf("search cache read failed for workspace %d: %v", workspaceID, err)
	} else if hit {
		return cached, nil
	}

	rows, err := s.chunks.ListSearchableByWorkspace(workspaceID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []SearchResult{}, nil
	}

	// One query embedding per distinct provider tag present.
	queryVectors := make(map[string][]float32)
	for _, row := range rows {
		if _, done := queryVectors[row.Provider]; done {
			continue
		}
		provider, known := s.providers[row.Provider]
		if !known {
			queryVectors[row.Provider] = nil
			continue
		}
		vec, err := provider.Embed(ctx, query)
		if err != nil {
			log.Printf("query embedding with provider %q failed: %v", row.Provider, err)
			vec = nil
		}
		queryVectors[row.Provider] = vec
	}

	scored := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		queryVec := queryVectors[row.Provider]
		chunkVec := row.EmbeddingVector()
		if len(queryVec) == 0 || len(chunkVec) != len(queryVec) {
			continue
		}
		scored = append(scored, SearchResult{
			ChunkID:    row.ID,
			FileID:     row.FileID,
			Filename:   row.Filename,
			Content:    row.Content,
			Score:      embedding.DisplayScore(embedding.CosineSimilarity(queryVec, chunkVec)),
			SourceLine: row.SourceLine,
			Provider:   row.Provider,
		})
	}

	// No usable vectors anywhere: lexical fallback over the chunk text.
	if len(scored) == 0 {
		terms := distinctTerms(query)
		for _, row := range rows {
			score := termOverlap(terms, row.Content)
			if score <= 0 {
				continue
			}
			scored = append(scored, SearchResult{
				ChunkID:    row.ID,
				FileID:     row.FileID,
				Filename:   row.Filename,
				Content:    row.Content,
				Score:      score,
				SourceLine: row.SourceLine,
				Provider:   row.Provider,
			})
		}
	}

	// Stable sort keeps insertion order on equal scores, so repeated
	// identical queries return identical rankings.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	if err := s.cache.SetResults(ctx, workspaceID, query, topK, scored); err != nil {
		log.Printf("search cache write failed for workspace %d: %v", workspaceID, err)
	}
	return scored, nil
}

func distinctTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// termOverlap scores text by the fraction of distinct query terms it
// contains.
func termOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
