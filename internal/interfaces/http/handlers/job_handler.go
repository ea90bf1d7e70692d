package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/internal/application/jobs"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/types/job"
)

// JobService is the submission side of the async pipeline.
type JobService interface {
	Submit(ctx context.Context, text string, opts clause_ner.WindowOptions) (*job.Job, error)
	Get(ctx context.Context, id string) (*jobs.Status, error)
}

// SubmitResponse is the 202 body of POST /v1/jobs.
type SubmitResponse struct {
	JobID  string     `json:"job_id"`
	Status job.Status `json:"status"`
}

// JobResponse is the body of GET /v1/jobs/:id.
type JobResponse struct {
	*job.Job
	Result *job.Result `json:"result,omitempty"`
}

// JobHandler serves the async job endpoints. A nil service answers
// COMMON_015.
type JobHandler struct {
	service JobService
	logger  logging.Logger
}

func NewJobHandler(service JobService, logger logging.Logger) *JobHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &JobHandler{service: service, logger: logger.Named("job_handler")}
}

// Submit handles POST /v1/jobs.
func (h *JobHandler) Submit(c *gin.Context) {
	if h.service == nil {
		respondError(c, h.logger, errFeatureDisabled.WithDetail("async jobs"))
		return
	}
	var req ProfileRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, h.logger, err)
		return
	}

	j, err := h.service.Submit(c.Request.Context(), *req.Text, req.options())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Location", "/v1/jobs/"+j.ID)
	c.JSON(http.StatusAccepted, SubmitResponse{JobID: j.ID, Status: j.Status})
}

// Get handles GET /v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	if h.service == nil {
		respondError(c, h.logger, errFeatureDisabled.WithDetail("async jobs"))
		return
	}
	st, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, JobResponse{Job: st.Job, Result: st.Result})
}
