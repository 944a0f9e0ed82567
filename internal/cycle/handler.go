package cycle

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
)

type RunRequest struct {
	// RunAt defaults to the current time.
	RunAt *string `json:"run_at"`
}

type Handler struct {
	job *Job
}

func NewHandler(job *Job) *Handler {
	return &Handler{job: job}
}

// Run godoc
// @Summary      Run the monthly credit cycle
// @Description  Grants this month's credits to subscribers and expires last month's leftovers. Safe to repeat.
// @Tags         admin,credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      cycle.RunRequest  false  "Run options"
// @Success      200      {object}  cycle.Report
// @Failure      400      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /admin/credit-cycle/run [post]
func (h *Handler) Run(c *gin.Context) {
	var req RunRequest
	if !api.BindOptionalJSON(c, &req) {
		return
	}

	runAt := h.job.now()
	if req.RunAt != nil {
		t, err := time.Parse(time.RFC3339, *req.RunAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "run_at must be RFC3339"})
			return
		}
		runAt = t
	}

	report, err := h.job.Run(c.Request.Context(), runAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Credit cycle failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
