package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
	"fitclass/internal/booking"
	"fitclass/internal/class"
	"fitclass/internal/credit"
	"fitclass/internal/cycle"
	"fitclass/internal/submission"
)

type Options struct {
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type Handlers struct {
	Classes     *class.Handler
	Bookings    *booking.Handler
	Credits     *credit.Handler
	Submissions *submission.Handler
	Cycle       *cycle.Handler
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(opts Options, h Handlers) *Server {
	api.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(), MetricsMiddleware(), corsMiddleware())

	router.GET("/health", Health)
	router.GET("/ready", Ready(opts.Ready))
	router.GET("/metrics", Metrics())

	limit := RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst)
	staff := auth.RequireRole(auth.RoleCoach, auth.RoleAdmin)

	protected := router.Group("/")
	protected.Use(auth.AuthMiddleware(opts.JWTSecret))
	{
		protected.GET("/sessions", h.Classes.ListSessions)
		protected.POST("/sessions/:sessionID/book", limit, h.Bookings.BookSession)
		protected.GET("/sessions/:sessionID/bookings", staff, h.Bookings.GetSessionBookings)
		protected.GET("/bookings", h.Bookings.GetMyBookings)
		protected.POST("/bookings/:bookingID/cancel", limit, h.Bookings.CancelBooking)
		protected.POST("/bookings/:bookingID/attendance", staff, h.Bookings.MarkAttendance)

		protected.GET("/credits", h.Credits.GetBalances)
		protected.GET("/credits/:productID/entries", h.Credits.ListEntries)
		protected.GET("/credit-products", h.Credits.ListProducts)

		protected.POST("/credit-submissions", limit, h.Submissions.Submit)
		protected.GET("/credit-submissions", h.Submissions.ListMine)
	}

	admin := router.Group("/admin")
	admin.Use(auth.AuthMiddleware(opts.JWTSecret), auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/templates", h.Classes.CreateTemplate)
		admin.GET("/templates", h.Classes.ListTemplates)
		admin.DELETE("/templates/:templateID", h.Classes.DeactivateTemplate)
		admin.POST("/templates/:templateID/sessions", h.Classes.CreateSession)
		admin.PATCH("/sessions/:sessionID/status", h.Classes.UpdateSessionStatus)

		admin.POST("/credit-products", h.Credits.CreateProduct)
		admin.POST("/credit-products/:productID/subscriptions", h.Credits.CreateSubscription)
		admin.GET("/credit-products/:productID/subscriptions", h.Credits.ListSubscriptions)

		admin.GET("/credit-submissions", h.Submissions.ListPending)
		admin.POST("/credit-submissions/:submissionID/review", h.Submissions.Review)

		admin.POST("/credit-cycle/run", h.Cycle.Run)
	}

	return &Server{router: router}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
