package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"document-extraction-platform/internal/config"
	"document-extraction-platform/services"
)

// Handler bundles the services the HTTP layer depends on.
type Handler struct {
	cfg          *config.Config
	registry     *services.SchemaRegistry
	orchestrator *services.Orchestrator
	ledger       *services.RunLedger
}

func NewHandler(cfg *config.Config, registry *services.SchemaRegistry,
	orchestrator *services.Orchestrator, ledger *services.RunLedger) *Handler {
	return &Handler{cfg: cfg, registry: registry, orchestrator: orchestrator, ledger: ledger}
}

// SetupRouter builds the gin engine with CORS and all routes registered.
func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(h.cfg.GinMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     h.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Run-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.MaxMultipartMemory = h.cfg.MaxFileSize

	r.GET("/health", h.Health)
	r.GET("/schemas", h.ListSchemas)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/stats", h.RunStats)
	r.POST("/process", h.Process)
	r.POST("/export", h.Export)

	return r
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
