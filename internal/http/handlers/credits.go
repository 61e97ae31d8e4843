package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type GrantRequest struct {
	UserID      int64  `json:"user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id"`
	NotifyUser  *bool  `json:"notify_user"`
}

func (r GrantRequest) values(target *domain.Candidate) credits.GrantValues {
	v := credits.GrantValues{
		Target:      target,
		Amount:      r.Amount,
		Description: r.Description,
		ReferenceID: r.ReferenceID,
		NotifyUser:  credits.DefaultNotifyUsers,
	}
	if r.NotifyUser != nil {
		v.NotifyUser = *r.NotifyUser
	}
	return v
}

// GrantCredits submits a grant through the admin's shared form. A second
// submit while one is in flight is refused with 409.
func (h *Handler) GrantCredits(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	ctx := auditContext(c, adminID(c))
	form := h.Desk.Form(middleware.AdminKeyFrom(c))

	// the target must come from the directory, not from the request body
	var target *domain.Candidate
	if req.UserID != 0 {
		if cur := form.State().Values.Target; cur != nil && cur.ID == req.UserID {
			target = cur
		} else {
			cand, err := credits.ResolveTarget(ctx, middleware.ClientFrom(c), req.UserID)
			if err != nil {
				grantError(c, err, form)
				return
			}
			target = &cand
		}
	}

	res, err := form.SubmitValues(ctx, req.values(target))
	if err != nil {
		grantError(c, err, form)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":         credits.MsgGrantSucceeded,
		"redirect":        credits.TransactionsPath,
		"result":          res,
		"idempotency_key": form.IdempotencyKey(),
	})
}

func grantError(c *gin.Context, err error, form *credits.GrantForm) {
	var verr *credits.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, credits.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, adminapi.ErrUnauthorized):
		middleware.Unauthorized(c)
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  adminapi.UserMessage(err, credits.MsgGrantFailed),
			"values": form.State().Values,
		})
	}
}

// GetGrantForm returns the admin's form state, e.g. after a reload.
func (h *Handler) GetGrantForm(c *gin.Context) {
	c.JSON(http.StatusOK, h.Desk.Form(middleware.AdminKeyFrom(c)).State())
}

// ListTransactions returns one page of the ledger. Upstream failures
// degrade to an empty page carrying an error message.
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	txType, err := domain.ParseTransactionType(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var userID int64
	if v := c.Query("user_id"); v != "" {
		userID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || userID < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
	}

	client := middleware.ClientFrom(c)
	viewer := credits.NewHistoryViewer(client)
	viewer.Open(c.Request.Context(), credits.HistoryKey{Page: page, Type: txType, UserID: userID})
	viewer.Wait()

	if _, ok := client.Session().Token(c.Request.Context()); !ok {
		middleware.Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, viewer.State())
}

func (h *Handler) CreditStats(c *gin.Context) {
	stats, err := middleware.ClientFrom(c).CreditStats(c.Request.Context())
	if err != nil {
		upstreamError(c, err, "Failed to load credit stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
