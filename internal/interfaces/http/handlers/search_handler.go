package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/search/opensearch"
)

// ClauseSearcher queries indexed clauses.
type ClauseSearcher interface {
	Search(ctx context.Context, req opensearch.SearchRequest) (*opensearch.SearchResult, error)
}

type SearchHandler struct {
	searcher ClauseSearcher
	logger   logging.Logger
}

func NewSearchHandler(searcher ClauseSearcher, logger logging.Logger) *SearchHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SearchHandler{searcher: searcher, logger: logger.Named("search_handler")}
}

// Search handles GET /v1/clauses/search?q=&bucket=&job_id=&document_type=&from=&size=.
func (h *SearchHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		respondError(c, h.logger, errFeatureDisabled.WithDetail("clause search"))
		return
	}
	from, err := queryInt(c, "from")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	size, err := queryInt(c, "size")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.searcher.Search(c.Request.Context(), opensearch.SearchRequest{
		Query:        c.Query("q"),
		Bucket:       c.Query("bucket"),
		JobID:        c.Query("job_id"),
		DocumentType: c.Query("document_type"),
		From:         from,
		Size:         size,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
