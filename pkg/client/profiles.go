package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// ProfileRequest is a document plus optional window overrides. Zero values
// take the server defaults.
type ProfileRequest struct {
	Text      string `json:"text"`
	MaxLen    int    `json:"max_len,omitempty"`
	Stride    int    `json:"stride,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// ProfileResponse is the answer of POST /v1/profile.
type ProfileResponse struct {
	Profile *profile.Profile        `json:"profile"`
	Refined *profile.RefinedProfile `json:"refined,omitempty"`
}

// Profile runs the synchronous pipeline. With refine the refined view is
// returned as well.
func (c *Client) Profile(ctx context.Context, req ProfileRequest, refine bool) (*ProfileResponse, error) {
	path := "/v1/profile"
	if refine {
		path += "?refine=true"
	}
	var out ProfileResponse
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refine sends a previously produced profile through refinement.
func (c *Client) Refine(ctx context.Context, p *profile.Profile) (*profile.RefinedProfile, error) {
	if p == nil {
		return nil, errors.NoUsableInput("no profile to refine")
	}
	var out profile.RefinedProfile
	if err := c.post(ctx, "/v1/refine", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID  string     `json:"job_id"`
	Status job.Status `json:"status"`
}

// JobStatus is the answer of GET /v1/jobs/:id.
type JobStatus struct {
	job.Job
	Result *job.Result `json:"result,omitempty"`
}

// SubmitJob queues a document for asynchronous profiling.
func (c *Client) SubmitJob(ctx context.Context, req ProfileRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.post(ctx, "/v1/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*JobStatus, error) {
	var out JobStatus
	if err := c.get(ctx, "/v1/jobs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitJob polls until the job is completed or failed, or ctx ends.
func (c *Client) WaitJob(ctx context.Context, id string) (*JobStatus, error) {
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()
	for {
		st, err := c.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Status.IsTerminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}

// SearchRequest filters indexed clauses. Empty fields are not sent.
type SearchRequest struct {
	Query        string
	Bucket       profile.Bucket
	JobID        string
	DocumentType string
	From         int
	Size         int
}

// ClauseHit is one matching clause.
type ClauseHit struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	Bucket       string    `json:"bucket"`
	Position     int       `json:"position"`
	Text         string    `json:"text"`
	DocumentType string    `json:"document_type"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Model        string    `json:"model,omitempty"`
	IndexedAt    time.Time `json:"indexed_at"`
	Score        float64   `json:"score"`
	Highlights   []string  `json:"highlights,omitempty"`
}

type SearchResult struct {
	Total        int64          `json:"total"`
	Hits         []ClauseHit    `json:"hits"`
	BucketCounts map[string]int `json:"bucket_counts"`
}

// SearchClauses queries GET /v1/clauses/search.
func (c *Client) SearchClauses(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("q", req.Query)
	set("bucket", string(req.Bucket))
	set("job_id", req.JobID)
	set("document_type", req.DocumentType)
	if req.From > 0 {
		q.Set("from", strconv.Itoa(req.From))
	}
	if req.Size > 0 {
		q.Set("size", strconv.Itoa(req.Size))
	}

	path := "/v1/clauses/search"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var out SearchResult
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
