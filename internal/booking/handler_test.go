package booking_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitclass/internal/auth"
	"fitclass/internal/booking"
	"fitclass/internal/db"
)

func setupRouter(f *fixture, userID int, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_role", role)
		c.Next()
	})

	h := booking.NewHandler(f.svc)
	router.POST("/sessions/:sessionID/book", h.BookSession)
	router.GET("/sessions/:sessionID/bookings", h.GetSessionBookings)
	router.POST("/bookings/:bookingID/cancel", h.CancelBooking)
	router.POST("/bookings/:bookingID/attendance", h.MarkAttendance)
	router.GET("/bookings", h.GetMyBookings)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBookSession_Handler(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, false, 1), 24*time.Hour)
	f.grant(1, 1)
	router := setupRouter(f, 1, auth.RoleClient)
	path := fmt.Sprintf("/sessions/%d/book", sess.ID)

	w := doJSON(router, http.MethodPost, path, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var res booking.BookResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, booking.ResultBooked, res.Result)

	w = doJSON(router, http.MethodPost, path, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already_exists")

	other := setupRouter(f, 2, auth.RoleClient)
	w = doJSON(other, http.MethodPost, path, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Session is full")
}

func TestBookSession_HandlerErrors(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 24*time.Hour)
	far := f.session(f.template(2, true, 1), 30*24*time.Hour)
	client := setupRouter(f, 1, auth.RoleClient)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"bad id", "/sessions/abc/book", "", http.StatusBadRequest},
		{"unknown session", "/sessions/9999/book", "", http.StatusNotFound},
		{"window closed", fmt.Sprintf("/sessions/%d/book", far.ID), "", http.StatusForbidden},
		{"no credits", fmt.Sprintf("/sessions/%d/book", sess.ID), "", http.StatusPaymentRequired},
		{"booking for someone else", fmt.Sprintf("/sessions/%d/book", sess.ID), `{"client_id": 2}`, http.StatusForbidden},
		{"client skipping credits", fmt.Sprintf("/sessions/%d/book", sess.ID), `{"skip_credit_validation": true}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(client, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBookSession_HandlerStaff(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 30*24*time.Hour)
	coach := setupRouter(f, coachID, auth.RoleCoach)
	path := fmt.Sprintf("/sessions/%d/book", sess.ID)

	w := doJSON(coach, http.MethodPost, path, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(coach, http.MethodPost, path, `{"client_id": 3, "skip_credit_validation": true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var res booking.BookResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Booking.ClientID)
	assert.Equal(t, booking.SourceCoach, res.Booking.Source)
}

func TestBookSession_HandlerStaffChunkedBody(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 30*24*time.Hour)
	coach := setupRouter(f, coachID, auth.RoleCoach)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/sessions/%d/book", sess.ID),
		bytes.NewBufferString(`{"client_id": 5, "skip_credit_validation": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	coach.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res booking.BookResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 5, res.Booking.ClientID)
}

func TestCancelBooking_Handler(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 0), 24*time.Hour)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	_, err = f.book(sess.ID, 2)
	require.NoError(t, err)

	path := fmt.Sprintf("/bookings/%d/cancel", a.Booking.ID)

	w := doJSON(setupRouter(f, 2, auth.RoleClient), http.MethodPost, path, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(setupRouter(f, 1, auth.RoleClient), http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp booking.CancelBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, booking.StatusCancelled, resp.Booking.Status)
	require.Len(t, resp.Promoted, 1)
	assert.Equal(t, 2, resp.Promoted[0].ClientID)
	assert.Empty(t, resp.PromotionError)

	w = doJSON(setupRouter(f, 1, auth.RoleClient), http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.AlreadyCancelled)

	w = doJSON(setupRouter(f, 1, auth.RoleClient), http.MethodPost, "/bookings/4040/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkAttendance_Handler(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 0), 24*time.Hour)
	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)

	coach := setupRouter(f, coachID, auth.RoleCoach)
	path := fmt.Sprintf("/bookings/%d/attendance", a.Booking.ID)

	w := doJSON(coach, http.MethodPost, path, `{"status": "MAYBE"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(coach, http.MethodPost, path, `{"status": "ATTENDED"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ATTENDED"`)

	w = doJSON(coach, http.MethodPost, path, `{"status": "NO_SHOW"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListHandlers(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 0), 24*time.Hour)
	_, err := f.book(sess.ID, 1)
	require.NoError(t, err)

	w := doJSON(setupRouter(f, 1, auth.RoleClient), http.MethodGet, "/bookings?limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []booking.BookingWithSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = doJSON(setupRouter(f, coachID, auth.RoleCoach), http.MethodGet, fmt.Sprintf("/sessions/%d/bookings", sess.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(setupRouter(f, coachID, auth.RoleCoach), http.MethodGet, "/sessions/31337/bookings", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
