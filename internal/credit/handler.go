package credit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
)

var errorRules = []api.Rule{
	{Err: ErrProductNotFound, Status: http.StatusNotFound, Message: "Credit product not found"},
	{Err: ErrInvalidProduct, Status: http.StatusBadRequest, Message: "Invalid credit product"},
	{Err: ErrInvalidSubscription, Status: http.StatusBadRequest},
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// subjectID is the caller, or for staff the client named by ?client_id.
func subjectID(c *gin.Context) (int, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return 0, false
	}
	if raw := c.Query("client_id"); raw != "" && auth.IsStaff(c) {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return userID, true
}

// GetBalances godoc
// @Summary      Credit balances
// @Description  Returns the caller's balance per credit product. Staff may pass client_id.
// @Tags         credits
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query     int  false  "Client ID (staff only)"
// @Success      200        {array}   credit.BalanceResponse
// @Router       /credits [get]
func (h *Handler) GetBalances(c *gin.Context) {
	clientID, ok := subjectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid client"})
		return
	}

	balances, err := h.service.GetBalances(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch balances"})
		return
	}

	c.JSON(http.StatusOK, balances)
}

// ListEntries godoc
// @Summary      Ledger history for one product
// @Tags         credits
// @Security     BearerAuth
// @Produce      json
// @Param        productID  path      int  true   "Credit product ID"
// @Param        limit      query     int  false  "Page size"  default(50)
// @Param        offset     query     int  false  "Offset"     default(0)
// @Success      200        {array}   credit.Entry
// @Router       /credits/{productID}/entries [get]
func (h *Handler) ListEntries(c *gin.Context) {
	clientID, ok := subjectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid client"})
		return
	}

	productID, err := strconv.Atoi(c.Param("productID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid product ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.service.ListEntries(c.Request.Context(), clientID, productID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch ledger entries"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, products)
}

// CreateProduct godoc
// @Summary      Create credit product
// @Tags         admin,credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      credit.CreateProductRequest  true  "Product"
// @Success      201      {object}  credit.Product
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/credit-products [post]
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if !api.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to create product")
		return
	}

	c.JSON(http.StatusCreated, p)
}

// CreateSubscription godoc
// @Summary      Subscribe a client to a monthly product
// @Tags         admin,credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        productID  path      int                               true  "Credit product ID"
// @Param        request    body      credit.CreateSubscriptionRequest  true  "Subscription"
// @Success      201        {object}  credit.Subscription
// @Failure      400        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Router       /admin/credit-products/{productID}/subscriptions [post]
func (h *Handler) CreateSubscription(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("productID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid product ID"})
		return
	}

	var req CreateSubscriptionRequest
	if !api.BindJSON(c, &req) {
		return
	}

	sub, err := h.service.CreateSubscription(c.Request.Context(), productID, req)
	if err != nil {
		api.RespondError(c, err, errorRules, "Failed to create subscription")
		return
	}

	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	clientID, ok := subjectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid client"})
		return
	}

	subs, err := h.service.ListSubscriptions(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch subscriptions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}
