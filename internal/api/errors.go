package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Rule maps a sentinel error to the response a handler sends for it.
type Rule struct {
	Err     error
	Status  int
	Message string
}

// StatusFor returns the first rule whose error matches err. Unmatched errors
// map to 500 with fallback as the message.
func StatusFor(err error, rules []Rule, fallback string) Rule {
	for _, r := range rules {
		if errors.Is(err, r.Err) {
			if r.Message == "" {
				r.Message = r.Err.Error()
			}
			return r
		}
	}
	return Rule{Err: err, Status: http.StatusInternalServerError, Message: fallback}
}

func RespondError(c *gin.Context, err error, rules []Rule, fallback string) {
	r := StatusFor(err, rules, fallback)
	c.JSON(r.Status, ErrorResponse{Error: r.Message})
}
