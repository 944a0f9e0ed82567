package booking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
	"fitclass/internal/credit"
)

var errorRules = []api.Rule{
	{Err: ErrSessionNotFound, Status: http.StatusNotFound, Message: "Session not found"},
	{Err: ErrBookingNotFound, Status: http.StatusNotFound, Message: "Booking not found"},
	{Err: ErrSessionNotBookable, Status: http.StatusConflict, Message: "Session is not open for booking"},
	{Err: ErrBookingWindowClosed, Status: http.StatusForbidden, Message: "Booking window is closed"},
	{Err: ErrSessionFull, Status: http.StatusConflict, Message: "Session is full"},
	{Err: ErrInsufficientCredit, Status: http.StatusPaymentRequired},
	{Err: ErrBookingNotCancellable, Status: http.StatusConflict, Message: "Booking can no longer be cancelled"},
	{Err: ErrDuplicateActive, Status: http.StatusConflict, Message: "You already have a booking for this session"},
	{Err: ErrAttendanceNotAllowed, Status: http.StatusConflict, Message: "Attendance can only be marked on a booked seat"},
	{Err: ErrNotOwner, Status: http.StatusForbidden, Message: "You can only cancel your own bookings"},
	{Err: credit.ErrNoMatchingConsumption, Status: http.StatusInternalServerError, Message: "Credit ledger is inconsistent for this booking"},
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// BookSession godoc
// @Summary      Book a class session
// @Description  Books the current client into the session, or onto its waitlist when it is full.
// @Description  Coaches and admins may book a client by passing client_id.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        sessionID  path      int                         true   "Session ID"
// @Param        request    body      booking.BookSessionRequest  false  "Booking options"
// @Success      201        {object}  booking.BookResult
// @Success      200        {object}  booking.BookResult  "Client already holds a booking"
// @Failure      402        {object}  api.ErrorResponse
// @Failure      403        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /sessions/{sessionID}/book [post]
func (h *Handler) BookSession(c *gin.Context) {
	actorID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	sessionID, err := strconv.Atoi(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	var body BookSessionRequest
	if !api.BindOptionalJSON(c, &body) {
		return
	}

	req := BookRequest{
		SessionID:            sessionID,
		ClientID:             actorID,
		Source:               SourceClient,
		ActorID:              actorID,
		EnforceBookingWindow: true,
	}

	if auth.IsStaff(c) {
		if body.ClientID == nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "client_id is required"})
			return
		}
		role, _ := auth.GetRole(c)
		req.ClientID = *body.ClientID
		req.Source = SourceCoach
		if role == auth.RoleAdmin {
			req.Source = SourceAdmin
		}
		req.SkipCreditValidation = body.SkipCreditValidation
		req.EnforceBookingWindow = false
	} else if body.ClientID != nil && *body.ClientID != actorID {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Clients can only book for themselves"})
		return
	} else if body.SkipCreditValidation {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Only staff can skip credit validation"})
		return
	}

	res, err := h.service.BookClientIntoSession(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to create booking")
		return
	}

	status := http.StatusCreated
	if res.Result == ResultAlreadyExists {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// CancelBooking godoc
// @Summary      Cancel booking
// @Description  Cancels a booking. A freed seat is offered to the first waitlisted client.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  booking.CancelBookingResponse
// @Failure      400        {object}  api.ErrorResponse
// @Failure      403        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	actorID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	if !auth.IsStaff(c) {
		b, err := h.service.GetByID(c.Request.Context(), bookingID)
		if err != nil {
			api.RespondError(c, err, errorRules, "Failed to cancel booking")
			return
		}
		if b.ClientID != actorID {
			api.RespondError(c, ErrNotOwner, errorRules, "")
			return
		}
	}

	res, err := h.service.CancelBooking(c.Request.Context(), bookingID, actorID)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to cancel booking")
		return
	}

	resp := CancelBookingResponse{
		Booking:          res.Booking,
		Promoted:         res.Promoted,
		LateCancel:       res.LateCancel,
		AlreadyCancelled: res.AlreadyCancelled,
	}
	if res.PromotionError != nil {
		resp.PromotionError = res.PromotionError.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// MarkAttendance godoc
// @Summary      Mark attendance
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      int                            true  "Booking ID"
// @Param        request    body      booking.MarkAttendanceRequest  true  "Attendance status"
// @Success      200        {object}  booking.Booking
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/attendance [post]
func (h *Handler) MarkAttendance(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	var req MarkAttendanceRequest
	if !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.MarkAttendance(c.Request.Context(), bookingID, req.Status, actorID)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to mark attendance")
		return
	}

	c.JSON(http.StatusOK, b)
}

// GetMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size"  default(20)
// @Param        offset  query     int  false  "Offset"     default(0)
// @Success      200     {array}   booking.BookingWithSession
// @Router       /bookings [get]
func (h *Handler) GetMyBookings(c *gin.Context) {
	clientID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := h.service.ListClientBookings(c.Request.Context(), clientID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetSessionBookings godoc
// @Summary      Session roster
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Session ID"
// @Success      200        {array}   booking.Booking
// @Failure      404        {object}  api.ErrorResponse
// @Router       /sessions/{sessionID}/bookings [get]
func (h *Handler) GetSessionBookings(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	bookings, err := h.service.ListSessionBookings(c.Request.Context(), sessionID)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to fetch bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}
