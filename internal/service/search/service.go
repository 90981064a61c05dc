package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/thegovlab/reboot-chat/backend/internal/metrics"
	"github.com/thegovlab/reboot-chat/backend/internal/model/document"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	titleBoost = 2

	DefaultLimit     = 10
	DefaultCacheSize = 256
)

var ErrEmptyQuery = errors.New("search query is empty")

// Match names the pass that produced a hit.
type Match string

const (
	MatchKeyword Match = "keyword"
	MatchLoose   Match = "loose"
)

// Hit is a ranked search result.
type Hit struct {
	Document document.Document `json:"document"`
	Score    float64           `json:"score"`
	Match    Match             `json:"match"`
}

// Config tunes the search service.
type Config struct {
	// Limit caps the hits returned per document kind.
	Limit     int
	CacheSize int
}

type indexedDoc struct {
	doc    document.Document
	terms  map[string]int
	length int
}

// Service ranks corpus documents against a question. A keyword (BM25) pass
// runs first; a document kind with no keyword hits falls back to loose prefix
// matching so near-miss phrasings still surface context.
type Service struct {
	docs   []indexedDoc
	df     map[string]int
	avgLen float64
	limit  int
	cache  *lru.Cache[string, []Hit]
}

// NewService indexes every document in store.
func NewService(store document.Store, cfg Config) (*Service, error) {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, []Hit](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}

	svc := &Service{
		df:    make(map[string]int),
		limit: limit,
		cache: cache,
	}

	var total int
	for _, doc := range store.List() {
		idx := indexDocument(doc)
		for term := range idx.terms {
			svc.df[term]++
		}
		total += idx.length
		svc.docs = append(svc.docs, idx)
	}
	if len(svc.docs) > 0 {
		svc.avgLen = float64(total) / float64(len(svc.docs))
	}

	log.Printf("[search] indexed %d documents, %d terms", len(svc.docs), len(svc.df))
	return svc, nil
}

func indexDocument(doc document.Document) indexedDoc {
	idx := indexedDoc{doc: doc, terms: make(map[string]int)}
	add := func(text string, weight int) {
		for _, term := range tokenize(text) {
			idx.terms[term] += weight
			idx.length += weight
		}
	}

	add(doc.Title, titleBoost)
	add(doc.Summary, 1)
	add(doc.Content, 1)
	add(strings.Join(doc.Tags, " "), 1)
	add(strings.Join(doc.Authors, " "), 1)
	add(doc.Publication, 1)
	return idx
}

// Search returns weekly-news hits followed by blog hits, each ranked by score
// and capped at the configured limit.
func (s *Service) Search(ctx context.Context, query string) ([]Hit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	key := strings.Join(terms, " ")
	if hits, ok := s.cache.Get(key); ok {
		metrics.SearchQueries.WithLabelValues("cache_hit").Inc()
		return append([]Hit(nil), hits...), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hits []Hit
	for _, kind := range []document.Kind{document.KindWeeklyNewsItem, document.KindBlogPostChunk} {
		kindHits := s.rank(kind, terms, MatchKeyword)
		if len(kindHits) == 0 {
			kindHits = s.rank(kind, terms, MatchLoose)
		}
		hits = append(hits, kindHits...)
	}

	metrics.SearchQueries.WithLabelValues(resultLabel(hits)).Inc()
	s.cache.Add(key, hits)
	return append([]Hit(nil), hits...), nil
}

func resultLabel(hits []Hit) string {
	if len(hits) == 0 {
		return "empty"
	}
	for _, hit := range hits {
		if hit.Match == MatchKeyword {
			return string(MatchKeyword)
		}
	}
	return string(MatchLoose)
}

func (s *Service) rank(kind document.Kind, terms []string, match Match) []Hit {
	var hits []Hit
	for _, idx := range s.docs {
		if idx.doc.Kind != kind {
			continue
		}

		var score float64
		if match == MatchKeyword {
			score = s.bm25(idx, terms)
		} else {
			score = looseScore(idx, terms)
		}
		if score > 0 {
			hits = append(hits, Hit{Document: idx.doc, Score: score, Match: match})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > s.limit {
		hits = hits[:s.limit]
	}
	return hits
}

func (s *Service) bm25(idx indexedDoc, terms []string) float64 {
	n := float64(len(s.docs))
	var score float64
	for _, term := range terms {
		tf := float64(idx.terms[term])
		if tf == 0 {
			continue
		}
		df := float64(s.df[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := tf + bm25K1*(1-bm25B+bm25B*float64(idx.length)/s.avgLen)
		score += idf * tf * (bm25K1 + 1) / norm
	}
	return score
}

// looseScore credits each query term with its best-matching document term.
func looseScore(idx indexedDoc, terms []string) float64 {
	var score float64
	for _, term := range terms {
		best := 0
		for docTerm, tf := range idx.terms {
			if tf > best && looseMatch(term, docTerm) {
				best = tf
			}
		}
		if best > 0 {
			score += 1 + math.Log(float64(best))
		}
	}
	return score
}
