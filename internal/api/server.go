// Package api exposes care plans over HTTP for the web client.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"care-planner/internal/cache"
	"care-planner/internal/repository"
	"care-planner/internal/service"
)

// maxAudioBytes caps voice uploads.
const maxAudioBytes = 25 << 20

// Server is the HTTP front end.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	plans      *service.CarePlanService
	caregivers *service.CaregiverService
	cache      *cache.Cache
	log        *zap.SugaredLogger
}

// NewServer wires the routes. c may be nil when Redis is not configured.
func NewServer(addr string, verifier *TokenVerifier, users *repository.UserRepository, plans *service.CarePlanService, caregivers *service.CaregiverService, c *cache.Cache, log *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:     gin.New(),
		plans:      plans,
		caregivers: caregivers,
		cache:      c,
		log:        log,
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())

	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api", authMiddleware(verifier, users, log))
	{
		carePlans := api.Group("/care-plans")
		{
			carePlans.POST("", s.createCarePlan)
			carePlans.GET("", s.listCarePlans)
			carePlans.GET("/:id", s.getCarePlan)
			carePlans.DELETE("/:id", s.deleteCarePlan)
			carePlans.PATCH("/:id/tasks", s.patchTasks)
			carePlans.PATCH("/:id/questions", s.patchQuestions)
			carePlans.POST("/:id/voice-memo", s.importVoiceMemo)
			carePlans.POST("/:id/questions/:qid/voice-answer", s.answerByVoice)
			carePlans.GET("/:id/caregivers", s.listCaregivers)
			carePlans.POST("/:id/caregivers", s.inviteCaregiver)
			carePlans.POST("/:id/notes", s.addNote)
		}
		api.POST("/invites/:code/accept", s.acceptInvite)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.log.Infow("HTTP server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("HTTP server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Infow("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infow("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
