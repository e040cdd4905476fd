// internal/providers/knowledge.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	gocache "github.com/patrickmn/go-cache"

	"github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
)

// ESKnowledgeConfig configures the Elasticsearch-backed knowledge provider.
type ESKnowledgeConfig struct {
	Index    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ESKnowledge searches the program/policy knowledge base. Results for a query
// are cached so repeated lookups within a run don't hit the cluster again.
type ESKnowledge struct {
	config ESKnowledgeConfig
	es     *elasticsearch.Client
	cache  *gocache.Cache
	logger logger.Logger
}

func NewESKnowledge(cfg ESKnowledgeConfig, es *elasticsearch.Client, log logger.Logger) *ESKnowledge {
	return &ESKnowledge{
		config: cfg,
		es:     es,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: log.With(map[string]interface{}{"provider": "knowledge"}),
	}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Title   string `json:"title"`
				Content string `json:"content"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (k *ESKnowledge) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	cacheKey := fmt.Sprintf("%s|%d", query, topK)
	if cached, found := k.cache.Get(cacheKey); found {
		return cached.([]Passage), nil
	}

	ctx, cancel := context.WithTimeout(ctx, k.config.Timeout)
	defer cancel()

	body := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, errors.NewKnowledgeSearchFailedError(query, err)
	}

	res, err := k.es.Search(
		k.es.Search.WithContext(ctx),
		k.es.Search.WithIndex(k.config.Index),
		k.es.Search.WithBody(&buf),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewKnowledgeSearchTimeoutError(query)
		}
		return nil, errors.NewKnowledgeSearchFailedError(query, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == 404 {
			return nil, errors.NewIndexNotFoundError(k.config.Index)
		}
		return nil, errors.NewKnowledgeSearchFailedError(query, fmt.Errorf("search error: %s", res.Status()))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewKnowledgeSearchFailedError(query, fmt.Errorf("decode error: %w", err))
	}

	passages := make([]Passage, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		passages = append(passages, Passage{
			ID:      hit.ID,
			Title:   hit.Source.Title,
			Content: hit.Source.Content,
			Score:   hit.Score,
		})
	}

	k.cache.Set(cacheKey, passages, gocache.DefaultExpiration)

	k.logger.Debug("knowledge search completed", map[string]interface{}{
		"query":    query,
		"hitCount": len(passages),
	})

	return passages, nil
}
