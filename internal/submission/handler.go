package submission

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
	"fitclass/internal/credit"
)

var errorRules = []api.Rule{
	{Err: ErrSubmissionNotFound, Status: http.StatusNotFound, Message: "Submission not found"},
	{Err: ErrSubmissionNotPending, Status: http.StatusConflict, Message: "Submission has already been reviewed"},
	{Err: ErrDuplicatePending, Status: http.StatusConflict, Message: "This purchase is already waiting for review"},
	{Err: ErrProductNotAvailable, Status: http.StatusBadRequest, Message: "This product cannot be claimed"},
	{Err: ErrInvalidAction, Status: http.StatusBadRequest},
	{Err: credit.ErrProductNotFound, Status: http.StatusNotFound, Message: "Credit product not found"},
	{Err: credit.ErrInvalidProduct, Status: http.StatusConflict, Message: "Product has no credit amount to grant"},
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Submit godoc
// @Summary      Claim an off-platform credit purchase
// @Tags         credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      submission.SubmitRequest  true  "Purchase claim"
// @Success      201      {object}  submission.Submission
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /credit-submissions [post]
func (h *Handler) Submit(c *gin.Context) {
	clientID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req SubmitRequest
	if !api.BindJSON(c, &req) {
		return
	}

	sub, err := h.service.Submit(c.Request.Context(), clientID, req)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to submit purchase")
		return
	}

	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) ListMine(c *gin.Context) {
	clientID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	subs, err := h.service.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch submissions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	subs, err := h.service.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch submissions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

// Review godoc
// @Summary      Review a credit submission
// @Tags         admin,credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        submissionID  path      int                       true  "Submission ID"
// @Param        request       body      submission.ReviewRequest  true  "Decision"
// @Success      200           {object}  submission.Submission
// @Failure      404           {object}  api.ErrorResponse
// @Failure      409           {object}  api.ErrorResponse
// @Router       /admin/credit-submissions/{submissionID}/review [post]
func (h *Handler) Review(c *gin.Context) {
	reviewerID, _ := auth.GetUserID(c)

	id, err := strconv.Atoi(c.Param("submissionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid submission ID"})
		return
	}

	var req ReviewRequest
	if !api.BindJSON(c, &req) {
		return
	}

	sub, err := h.service.Review(c.Request.Context(), id, req.Action, reviewerID)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to review submission")
		return
	}

	c.JSON(http.StatusOK, sub)
}
