package submission_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitclass/internal/auth"
	"fitclass/internal/credit"
	"fitclass/internal/db"
	"fitclass/internal/submission"
)

func setupRouter(f *fixture, userID int, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_role", role)
		c.Next()
	})

	h := submission.NewHandler(f.svc)
	router.POST("/credit-submissions", h.Submit)
	router.GET("/credit-submissions", h.ListMine)
	router.GET("/admin/credit-submissions", h.ListPending)
	router.POST("/admin/credit-submissions/:submissionID/review", h.Review)
	return router
}

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitAndReview_Handler(t *testing.T) {
	f := newFixture(t, db.ModeTransactional)
	p := f.product(t, credit.Product{Name: "10 pack", CreditsPerPeriod: ten(), EligibleForBookings: true})

	client := setupRouter(f, 5, auth.RoleClient)
	w := post(client, "/credit-submissions", fmt.Sprintf(`{"product_id":%d,"reference":"INV-1"}`, p.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sub submission.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, submission.StatusPending, sub.Status)

	w = post(client, "/credit-submissions", fmt.Sprintf(`{"product_id":%d,"reference":"INV-1"}`, p.ID))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(client, "/credit-submissions", `{"reference":"INV-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	admin := setupRouter(f, reviewerID, auth.RoleAdmin)
	w = httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/credit-submissions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var pending []submission.Submission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Len(t, pending, 1)

	path := fmt.Sprintf("/admin/credit-submissions/%d/review", sub.ID)
	w = post(admin, path, `{"action":"MAYBE"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(admin, path, `{"action":"APPROVE"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10, f.balance(t, 5, p.ID))

	w = post(admin, path, `{"action":"REJECT"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(admin, "/admin/credit-submissions/999/review", `{"action":"REJECT"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmit_RestrictedProduct_Handler(t *testing.T) {
	f := newFixture(t, db.ModeTransactional)
	p := f.product(t, credit.Product{Name: "Staff only", CreditsPerPeriod: ten(), PurchaseRestricted: true})

	w := post(setupRouter(f, 5, auth.RoleClient), "/credit-submissions", fmt.Sprintf(`{"product_id":%d,"reference":"X"}`, p.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
