// Package http exposes the pipeline over HTTP: the streaming story endpoint,
// session lifecycle and health.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"drama-server/internal/agent"
	"drama-server/internal/domain"
	"drama-server/internal/genre"
	"drama-server/internal/normalizer"
	"drama-server/internal/repository"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// Pinger is the health probe slice of the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoryHandler обрабатывает HTTP запросы пайплайна историй.
type StoryHandler struct {
	pipeline *agent.Service
	sessions repository.SessionRepository
	db       Pinger
	logger   *zap.Logger
}

// NewStoryHandler создает новый StoryHandler.
func NewStoryHandler(pipeline *agent.Service, sessions repository.SessionRepository, db Pinger, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		pipeline: pipeline,
		sessions: sessions,
		db:       db,
		logger:   logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты пайплайна.
func (h *StoryHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/story/:genre", h.streamStory)
		api.POST("/sessions", h.createSession)
		api.GET("/sessions/:id", h.getSession)
	}
	r.GET("/healthz", h.healthz)
}

type storyRequest struct {
	Messages    []domain.Message `json:"messages" binding:"required"`
	SessionID   *string          `json:"sessionId"`
	UserID      string           `json:"userId"`
	ChoiceIndex *int             `json:"choiceIndex"`
}

// streamStory runs one pipeline turn and streams the result. Failures before
// the first byte come back as a plain JSON error; after that they are
// delivered in-band on the event stream.
func (h *StoryHandler) streamStory(c *gin.Context) {
	profile, ok := genre.Lookup(c.Param("genre"))
	if !ok {
		c.JSON(http.StatusNotFound, APIError{Message: "unknown genre"})
		return
	}

	var body storyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	req := agent.Request{
		Messages:    body.Messages,
		UserID:      body.UserID,
		ChoiceIndex: body.ChoiceIndex,
		Profile:     profile,
	}
	if body.SessionID != nil {
		sessionID, err := uuid.Parse(*body.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, APIError{Message: "invalid sessionId"})
			return
		}
		req.SessionID = &sessionID
	}

	run, err := h.pipeline.Prepare(c.Request.Context(), req)
	if err != nil {
		h.respondPrepareError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	emitter := normalizer.NewEmitter(c.Writer, c.Writer)
	if err := run.Stream(c.Request.Context(), emitter); err != nil {
		h.logger.Error("Story stream ended with error", zap.Error(err))
	}
}

func (h *StoryHandler) respondPrepareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: "session not found"})
	case errors.Is(err, domain.ErrSessionBusy):
		c.JSON(http.StatusConflict, APIError{Message: "session is processing another request"})
	case errors.Is(err, domain.ErrUpstream):
		h.logger.Error("Upstream failure before stream start", zap.Error(err))
		c.JSON(http.StatusBadGateway, APIError{Message: "upstream service unavailable"})
	default:
		h.logger.Error("Failed to prepare story turn", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
	}
}

type createSessionRequest struct {
	UserID  string `json:"userId" binding:"required"`
	StoryID string `json:"storyId" binding:"required"`
}

func (h *StoryHandler) createSession(c *gin.Context) {
	var body createSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	state, err := h.sessions.CreateSession(c.Request.Context(), body.UserID, body.StoryID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
			return
		}
		h.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}

	c.JSON(http.StatusCreated, state)
}

func (h *StoryHandler) getSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid session id"})
		return
	}

	state, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, APIError{Message: "session not found"})
			return
		}
		h.logger.Error("Failed to load session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *StoryHandler) healthz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
