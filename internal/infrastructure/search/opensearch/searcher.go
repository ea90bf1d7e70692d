package opensearch

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

const maxPageSize = 100

// SearchRequest is a keyword query over indexed clauses. Empty filters are
// ignored; an empty Query matches everything.
type SearchRequest struct {
	Query        string
	Bucket       string
	JobID        string
	DocumentType string
	From         int
	Size         int
}

// Validate normalizes paging and rejects unknown buckets.
func (r *SearchRequest) Validate() error {
	if r.Bucket != "" && !profile.Bucket(r.Bucket).IsValid() {
		return errors.InvalidParam("unknown bucket").WithDetailf("bucket=%s", r.Bucket)
	}
	if r.From < 0 {
		return errors.InvalidParam("from must be >= 0")
	}
	if r.Size <= 0 {
		r.Size = 10
	}
	if r.Size > maxPageSize {
		r.Size = maxPageSize
	}
	return nil
}

// ClauseHit is one matching document.
type ClauseHit struct {
	ClauseDocument
	DocID      string   `json:"id"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// SearchResult is a page of hits plus per-bucket counts of all matches.
type SearchResult struct {
	Total        int64          `json:"total"`
	Hits         []ClauseHit    `json:"hits"`
	BucketCounts map[string]int `json:"bucket_counts"`
}

// Searcher queries the clause index.
type Searcher struct {
	client *Client
	index  string
	logger logging.Logger
}

func NewSearcher(client *Client, index string, logger logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if index == "" {
		index = "clauselens-clauses"
	}
	return &Searcher{client: client, index: index, logger: logger}
}

// Search runs req against the index.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(buildQueryDSL(req))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal search body")
	}

	ctx, cancel := s.client.withTimeout(ctx)
	defer cancel()

	osResp, err := s.client.api.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{s.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		err = responseError(osResp.Inspect().Response, err, "search "+s.index)
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			// Nothing has been indexed yet.
			return &SearchResult{Hits: []ClauseHit{}, BucketCounts: map[string]int{}}, nil
		}
		return nil, err
	}

	// SearchHit drops highlights, so the buffered body is decoded again.
	var resp searchResponse
	if err := json.NewDecoder(osResp.Inspect().Response.Body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode search response")
	}

	out := &SearchResult{
		Total:        resp.Hits.Total.Value,
		Hits:         make([]ClauseHit, 0, len(resp.Hits.Hits)),
		BucketCounts: make(map[string]int, len(resp.Aggregations.Buckets.Buckets)),
	}
	for _, h := range resp.Hits.Hits {
		hit := ClauseHit{DocID: h.ID, Score: h.Score, Highlights: h.Highlight["text"]}
		if err := json.Unmarshal(h.Source, &hit.ClauseDocument); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode search hit").WithDetailf("id=%s", h.ID)
		}
		out.Hits = append(out.Hits, hit)
	}
	for _, b := range resp.Aggregations.Buckets.Buckets {
		out.BucketCounts[b.Key] = b.DocCount
	}

	s.logger.Debug("clause search",
		logging.String("query", req.Query),
		logging.Int64("total", out.Total))
	return out, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    json.RawMessage     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Buckets struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int    `json:"doc_count"`
			} `json:"buckets"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

func buildQueryDSL(req SearchRequest) map[string]interface{} {
	var must interface{} = map[string]interface{}{"match_all": map[string]interface{}{}}
	if req.Query != "" {
		must = map[string]interface{}{
			"match": map[string]interface{}{
				"text": map[string]interface{}{"query": req.Query, "operator": "and"},
			},
		}
	}

	filters := []interface{}{}
	for _, f := range [][2]string{
		{"bucket", req.Bucket},
		{"job_id", req.JobID},
		{"document_type", req.DocumentType},
	} {
		if f[1] != "" {
			filters = append(filters, map[string]interface{}{"term": map[string]interface{}{f[0]: f[1]}})
		}
	}

	return map[string]interface{}{
		"from":             req.From,
		"size":             req.Size,
		"track_total_hits": true,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filters},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"indexed_at": "desc"}},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{"text": map[string]interface{}{}},
		},
		"aggs": map[string]interface{}{
			"buckets": map[string]interface{}{"terms": map[string]interface{}{"field": "bucket", "size": len(profile.Buckets)}},
		},
	}
}
