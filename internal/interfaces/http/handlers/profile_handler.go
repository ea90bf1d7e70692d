package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/clauselens/internal/application/refinement"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Profiler produces profiles synchronously.
type Profiler interface {
	Profile(ctx context.Context, text string, opts clause_ner.WindowOptions) (*profile.Profile, error)
	Model() string
}

// ProfileRequest is the body of POST /v1/profile and POST /v1/jobs. Text is
// a pointer so an absent field can be told apart from an empty document.
type ProfileRequest struct {
	Text      *string `json:"text"`
	MaxLen    int     `json:"max_len"`
	Stride    int     `json:"stride"`
	BatchSize int     `json:"batch_size"`
}

func (r *ProfileRequest) options() clause_ner.WindowOptions {
	return clause_ner.WindowOptions{MaxLen: r.MaxLen, Stride: r.Stride, BatchSize: r.BatchSize}
}

func (r *ProfileRequest) validate() error {
	if r.Text == nil {
		return errors.NoUsableInput("text is required")
	}
	return nil
}

// ProfileResponse carries the profile and, when asked for, its refinement.
type ProfileResponse struct {
	Profile *profile.Profile        `json:"profile"`
	Refined *profile.RefinedProfile `json:"refined,omitempty"`
}

// ProfileHandler serves the synchronous pipeline.
type ProfileHandler struct {
	profiler Profiler
	logger   logging.Logger
}

func NewProfileHandler(profiler Profiler, logger logging.Logger) *ProfileHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ProfileHandler{profiler: profiler, logger: logger.Named("profile_handler")}
}

// Profile handles POST /v1/profile. With ?refine=true the refined profile is
// returned alongside.
func (h *ProfileHandler) Profile(c *gin.Context) {
	var req ProfileRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, h.logger, err)
		return
	}

	p, err := h.profiler.Profile(c.Request.Context(), *req.Text, req.options())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp := ProfileResponse{Profile: p}
	if c.Query("refine") == "true" {
		if resp.Refined, err = refinement.Refine(p); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Refine handles POST /v1/refine: the body is a profile produced earlier.
func (h *ProfileHandler) Refine(c *gin.Context) {
	var p profile.Profile
	if err := bindJSON(c, &p); err != nil {
		respondError(c, h.logger, err)
		return
	}
	refined, err := refinement.Refine(&p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, refined)
}
