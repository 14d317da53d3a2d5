// Package httpapi is the thin HTTP entrypoint wrapping
// internal/forensics/engine: a single POST /analyze, a /healthz probe,
// and an optional /ws/progress feed of phase-transition events. The rest
// of the surface (persistence, investigations, chat assistant) is out of
// scope — only the token risk analysis contract is exposed here.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/engine"
	"github.com/rawblock/forensic-engine/internal/forensics/errs"
)

// Handler binds the analysis engine and process config to the route
// handlers below.
type Handler struct {
	cfg         *config.Config
	engine      *engine.Engine
	progressHub *ProgressHub
}

// NewRouter builds the gin.Engine exposing the forensic analysis API.
// progressHub may be nil to disable the /ws/progress feed entirely.
func NewRouter(cfg *config.Config, eng *engine.Engine, progressHub *ProgressHub) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &Handler{cfg: cfg, engine: eng, progressHub: progressHub}

	r.GET("/", h.handleRoot)
	r.GET("/healthz", h.handleHealth)

	protected := r.Group("/")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(30, 5).Middleware())
	protected.POST("/analyze", h.handleAnalyze)

	if progressHub != nil {
		r.GET("/ws/progress", progressHub.Subscribe)
	}

	return r
}

type analyzeRequest struct {
	TokenAddress      string `json:"tokenAddress" binding:"required"`
	Chain             string `json:"chain"`
	PreferredProvider string `json:"preferredProvider"`
	MaxTransactions   int    `json:"maxTransactions"`
	TimeoutSeconds    int    `json:"timeoutSeconds"`
}

func (h *Handler) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	chain := req.Chain
	if chain == "" {
		chain = "ethereum"
	}

	requestID := uuid.NewString()
	opts := engine.RequestOptions{
		PreferredProvider: req.PreferredProvider,
		MaxTransactions:   req.MaxTransactions,
		TimeoutSeconds:    req.TimeoutSeconds,
	}

	progress := func(phase string) {
		h.progressHub.Notify(requestID, phase)
	}

	result, err := h.engine.Analyze(c.Request.Context(), chain, req.TokenAddress, opts, progress)
	if err != nil {
		status := http.StatusInternalServerError
		if errs.IsKind(err, errs.Configuration) {
			status = http.StatusBadRequest
		} else if errs.IsKind(err, errs.Deadline) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": err.Error(), "requestId": requestID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requestId": requestID, "result": result})
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "operational",
		"maxHolders":      h.cfg.MaxHolders,
		"maxTransactions": h.cfg.MaxTransactionsToFetch,
		"timeoutSeconds":  h.cfg.TimeoutSeconds,
	})
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "forensic-engine",
		"endpoints": []string{
			strings.Join([]string{"POST", "/analyze"}, " "),
			strings.Join([]string{"GET", "/healthz"}, " "),
			strings.Join([]string{"GET", "/ws/progress"}, " "),
		},
	})
}
