package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// ClauseDocument is one refined bucket entry as stored in the index.
type ClauseDocument struct {
	JobID        string    `json:"job_id"`
	Bucket       string    `json:"bucket"`
	Position     int       `json:"position"`
	Text         string    `json:"text"`
	DocumentType string    `json:"document_type"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Model        string    `json:"model,omitempty"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// ID is stable per job, bucket and position so re-indexing a job overwrites
// its previous documents.
func (d ClauseDocument) ID() string {
	return fmt.Sprintf("%s:%s:%d", d.JobID, d.Bucket, d.Position)
}

// BulkItemError describes one rejected document.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// IndexerConfig configures the clause index.
type IndexerConfig struct {
	Index         string
	Shards        int
	Replicas      int
	RefreshPolicy string // "", "true", "wait_for"
}

// Indexer writes ClauseDocuments.
type Indexer struct {
	client *Client
	config IndexerConfig
	logger logging.Logger
	now    func() time.Time
}

func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Index == "" {
		cfg.Index = "clauselens-clauses"
	}
	if cfg.Shards == 0 {
		cfg.Shards = 1
	}
	return &Indexer{client: client, config: cfg, logger: logger, now: time.Now}
}

// ClauseIndexMapping is the mapping EnsureIndex creates.
func ClauseIndexMapping(shards, replicas int) map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
		},
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"job_id":        keyword,
				"bucket":        keyword,
				"position":      map[string]interface{}{"type": "integer"},
				"text":          map[string]interface{}{"type": "text", "analyzer": "english"},
				"document_type": keyword,
				"jurisdiction":  keyword,
				"model":         keyword,
				"indexed_at":    map[string]interface{}{"type": "date"},
			},
		},
	}
}

// EnsureIndex creates the index when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	ctx, cancel := i.client.withTimeout(ctx)
	defer cancel()

	exists, err := i.indexExists(ctx)
	if err != nil || exists {
		return err
	}

	body, err := json.Marshal(ClauseIndexMapping(i.config.Shards, i.config.Replicas))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal index mapping")
	}
	resp, err := i.client.api.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: i.config.Index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		// A concurrent creator wins with resource_already_exists_exception.
		if statusOf(resp.Inspect().Response) == http.StatusBadRequest {
			if ok, herr := i.indexExists(ctx); herr == nil && ok {
				return nil
			}
		}
		return responseError(resp.Inspect().Response, err, "create index "+i.config.Index)
	}
	i.logger.Info("index created", logging.String("index", i.config.Index))
	return nil
}

func (i *Indexer) indexExists(ctx context.Context) (bool, error) {
	resp, err := i.client.api.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{i.config.Index}})
	if err == nil {
		return true, nil
	}
	if statusOf(resp) == http.StatusNotFound {
		return false, nil
	}
	return false, responseError(resp, err, "index exists "+i.config.Index)
}

// Documents flattens the buckets of refined into index documents, in bucket
// output order.
func Documents(jobID, model string, refined *profile.RefinedProfile, at time.Time) []ClauseDocument {
	if refined == nil {
		return nil
	}
	jurisdiction := ""
	if refined.Jurisdiction != nil {
		jurisdiction = *refined.Jurisdiction
	}
	var docs []ClauseDocument
	for _, b := range profile.Buckets {
		for pos, text := range refined.Bucket(b) {
			docs = append(docs, ClauseDocument{
				JobID:        jobID,
				Bucket:       string(b),
				Position:     pos,
				Text:         text,
				DocumentType: refined.DocumentType,
				Jurisdiction: jurisdiction,
				Model:        model,
				IndexedAt:    at.UTC(),
			})
		}
	}
	return docs
}

// IndexRefined indexes every bucket entry of refined under jobID.
func (i *Indexer) IndexRefined(ctx context.Context, jobID, model string, refined *profile.RefinedProfile) (*BulkResult, error) {
	return i.BulkIndex(ctx, Documents(jobID, model, refined, i.now()))
}

// BulkIndex sends docs in a single _bulk request. Item failures are reported
// in the result; the error covers transport and whole-request failures.
func (i *Indexer) BulkIndex(ctx context.Context, docs []ClauseDocument) (*BulkResult, error) {
	result := &BulkResult{}
	if len(docs) == 0 {
		return result, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		action := map[string]map[string]string{"index": {"_index": i.config.Index, "_id": d.ID()}}
		if err := enc.Encode(action); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode bulk action")
		}
		if err := enc.Encode(d); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode bulk document")
		}
	}

	ctx, cancel := i.client.withTimeout(ctx)
	defer cancel()

	resp, err := i.client.api.Bulk(ctx, opensearchapi.BulkReq{
		Body:   &buf,
		Params: opensearchapi.BulkParams{Refresh: i.config.RefreshPolicy},
	})
	if err != nil {
		return nil, responseError(resp.Inspect().Response, err, "bulk")
	}

	for _, item := range resp.Items {
		for _, info := range item {
			if info.Status >= 200 && info.Status < 300 {
				result.Succeeded++
				continue
			}
			result.Failed++
			itemErr := BulkItemError{DocID: info.ID}
			if info.Error != nil {
				itemErr.ErrorType = info.Error.Type
				itemErr.Reason = info.Error.Reason
			}
			result.Errors = append(result.Errors, itemErr)
		}
	}

	i.logger.Debug("bulk index completed",
		logging.Int("documents", len(docs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}
