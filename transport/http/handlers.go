package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/service"
)

// BridgeHandlers contains the HTTP handlers exposing the bridge.
type BridgeHandlers struct {
	auth    *service.AuthService
	watcher *service.TxWatcher
}

// NewBridgeHandlers creates the bridge handlers.
func NewBridgeHandlers(auth *service.AuthService, watcher *service.TxWatcher) *BridgeHandlers {
	return &BridgeHandlers{auth: auth, watcher: watcher}
}

type sessionView struct {
	UserID           string    `json:"user_id"`
	WalletAddress    string    `json:"wallet_address"`
	AccessTokenAlias string    `json:"access_token_alias,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type statusView struct {
	Status  string       `json:"status"`
	Error   string       `json:"error,omitempty"`
	Session *sessionView `json:"session,omitempty"`
}

func (h *BridgeHandlers) statusView() statusView {
	status, lastErr := h.auth.Status()
	view := statusView{Status: string(status)}
	if lastErr != nil {
		view.Error = lastErr.Error()
	}
	if session := h.auth.CurrentSession(); session != nil {
		view.Session = &sessionView{
			UserID:           session.UserID,
			WalletAddress:    session.WalletAddress,
			AccessTokenAlias: session.AccessTokenAlias,
			ExpiresAt:        session.ExpiresAt,
		}
	}
	return view
}

// Session reports the current authentication state.
func (h *BridgeHandlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.statusView())
}

// Authenticate runs the challenge-response handshake. Failures map onto
// the machine's states so the dashboard can show the matching affordance:
// a retry for errors, a distinct "click to continue" for a blocked popup.
func (h *BridgeHandlers) Authenticate(c *gin.Context) {
	err := h.auth.Authenticate(c.Request.Context())
	if err != nil {
		statusCode := http.StatusUnauthorized
		switch {
		case errors.Is(err, core.ErrRestoreInProgress):
			statusCode = http.StatusConflict
		case errors.Is(err, core.ErrWalletNotConnected):
			statusCode = http.StatusBadRequest
		case errors.Is(err, core.ErrPopupBlocked):
			statusCode = http.StatusConflict
		}

		view := h.statusView()
		if view.Error == "" {
			view.Error = err.Error()
		}
		c.JSON(statusCode, view)
		return
	}

	c.JSON(http.StatusOK, h.statusView())
}

// Restore validates a persisted session; called on load and again when
// the wallet connects.
func (h *BridgeHandlers) Restore(c *gin.Context) {
	err := h.auth.RestoreSession(c.Request.Context())
	if err != nil {
		if errors.Is(err, core.ErrRestoreInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.statusView())
}

// Logout discards the session and purges tracked transactions.
func (h *BridgeHandlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Track registers a submitted transaction for confirmation watching.
func (h *BridgeHandlers) Track(c *gin.Context) {
	var req struct {
		TxHash   string            `json:"tx_hash" binding:"required"`
		TxType   string            `json:"tx_type" binding:"required"`
		Metadata map[string]string `json:"metadata"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.watcher.Track(c.Request.Context(), req.TxHash, core.TxType(req.TxType), req.Metadata); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"tx_hash": req.TxHash})
}

type transactionView struct {
	TxHash      string            `json:"tx_hash"`
	TxType      string            `json:"tx_type"`
	State       string            `json:"state"`
	IsTerminal  bool              `json:"is_terminal"`
	RetryCount  int               `json:"retry_count"`
	LastError   string            `json:"last_error,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Transaction returns one tracked entry.
func (h *BridgeHandlers) Transaction(c *gin.Context) {
	tx, ok := h.watcher.Get(c.Param("hash"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not tracked"})
		return
	}

	view := transactionView{
		TxHash:      tx.TxHash,
		TxType:      string(tx.TxType),
		State:       string(tx.State),
		IsTerminal:  tx.IsTerminal(),
		RetryCount:  tx.RetryCount,
		LastError:   tx.LastError,
		SubmittedAt: tx.SubmittedAt,
		Metadata:    tx.Metadata,
	}
	if !tx.ConfirmedAt.IsZero() {
		confirmedAt := tx.ConfirmedAt
		view.ConfirmedAt = &confirmedAt
	}
	c.JSON(http.StatusOK, view)
}

// PendingCount returns the number of non-terminal entries.
func (h *BridgeHandlers) PendingCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.watcher.PendingCount()})
}

// Acknowledge removes a tracked entry ahead of the cleanup sweep.
func (h *BridgeHandlers) Acknowledge(c *gin.Context) {
	h.watcher.Acknowledge(c.Param("hash"))
	c.JSON(http.StatusOK, gin.H{"message": "acknowledged"})
}
