package handlers

import (
	"net/http"

	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// SearchUsers resolves grant targets. Short queries return no candidates
// without calling the upstream.
func (h *Handler) SearchUsers(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		q = c.Query("search")
	}

	client := middleware.ClientFrom(c)
	lookup := credits.NewLookup(client)
	candidates := make([]domain.Candidate, 0, credits.LookupLimit)
	for cand := range lookup.Query(c.Request.Context(), q) {
		candidates = append(candidates, cand)
	}
	if _, ok := client.Session().Token(c.Request.Context()); !ok {
		middleware.Unauthorized(c)
		return
	}

	_, searched := credits.Searchable(q)
	c.JSON(http.StatusOK, gin.H{
		"query":      q,
		"searched":   searched,
		"candidates": candidates,
	})
}
