// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/extract"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/layout"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/ocr"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/preprocess"
)

const apiVersion = "1.0.0"

// Server wires the pipeline components behind the HTTP routes.
type Server struct {
	logger     *zap.Logger
	cfg        *config.Config
	normalizer *preprocess.Normalizer
	engine     ocr.Engine
	layout     *layout.Reconstructor
	extractor  *extract.Extractor
}

// New assembles a server from already constructed components.
func New(
	logger *zap.Logger,
	cfg *config.Config,
	normalizer *preprocess.Normalizer,
	engine ocr.Engine,
	reconstructor *layout.Reconstructor,
	extractor *extract.Extractor,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:     logger,
		cfg:        cfg,
		normalizer: normalizer,
		engine:     engine,
		layout:     reconstructor,
		extractor:  extractor,
	}
}

// Router builds the gin engine with CORS, panic recovery and the API
// routes mounted under /api/v1.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		s.logger.Error("panic recovered", zap.Any("error", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:   "InternalError",
			Message: "internal server error",
		})
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
	}))

	r.GET("/", s.handleIndex)

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.POST("/extract", s.handleExtract)

	return r
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Receipt OCR Pipeline API",
		"version": apiVersion,
		"health":  "/api/v1/health",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: apiVersion,
		Engine:  "azure-read",
	})
}
