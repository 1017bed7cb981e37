package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/podcastgen/api/internal/model"
	"github.com/podcastgen/api/internal/service"
	wshub "github.com/podcastgen/api/internal/websocket"
	"github.com/podcastgen/api/pkg/response"
)

// PodcastJobs is the job registry surface the handler needs
type PodcastJobs interface {
	StartPodcast(ctx context.Context, req *model.PodcastGenerateRequest) (*model.PodcastStartResponse, error)
	GetStatus(ctx context.Context, jobID string) (*model.PodcastStatusResponse, error)
	GetResult(ctx context.Context, jobID string) (*model.PodcastResult, error)
	CancelPodcast(ctx context.Context, jobID string) (*model.PodcastCancelResponse, error)
}

type PodcastHandler struct {
	service   PodcastJobs
	validator *validator.Validate
	hub       *wshub.Hub
}

func NewPodcastHandler(svc PodcastJobs, v *validator.Validate, hub *wshub.Hub) *PodcastHandler {
	return &PodcastHandler{
		service:   svc,
		validator: v,
		hub:       hub,
	}
}

// Generate handles POST /api/podcast/generate
// @Summary      Start podcast job
// @Description  Start an asynchronous podcast generation job from a topic or source URL
// @Tags         Podcast
// @Accept       json
// @Produce      json
// @Param        request body model.PodcastGenerateRequest true "Podcast request"
// @Success      202 {object} model.PodcastStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/podcast/generate [post]
func (h *PodcastHandler) Generate(c *fiber.Ctx) error {
	var req model.PodcastGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartPodcast(c.Context(), &req)
	if err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			return response.NotConfigured(c, cfgErr.Message)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/podcast/status/:jobId
// @Summary      Get podcast job status
// @Description  Get the current phase and progress of a podcast job
// @Tags         Podcast
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.PodcastStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/podcast/status/{jobId} [get]
func (h *PodcastHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		return h.jobError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/podcast/result/:jobId
// @Summary      Get podcast job result
// @Description  Get the script, brief and audio location of a finished podcast job
// @Tags         Podcast
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.PodcastResult
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/podcast/result/{jobId} [get]
func (h *PodcastHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		return h.jobError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/podcast/cancel/:jobId
// @Summary      Cancel podcast job
// @Description  Cancel a queued or running podcast job
// @Tags         Podcast
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.PodcastCancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/podcast/cancel/{jobId} [post]
func (h *PodcastHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelPodcast(c.Context(), jobID)
	if err != nil {
		return h.jobError(c, err)
	}

	return response.OK(c, result)
}

// Upgrade rejects non-websocket requests on the events route
func (h *PodcastHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Events streams job progress over a websocket: GET /ws/podcast/:jobId
func (h *PodcastHandler) Events() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		h.hub.HandleConnection(conn, conn.Params("jobId"))
	})
}

func (h *PodcastHandler) jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.ValidationError(c, "Job not completed yet", nil)
	case errors.Is(err, service.ErrJobAlreadyCompleted):
		return response.ValidationError(c, "Job already completed", nil)
	case errors.Is(err, service.ErrJobCanceled):
		return response.JobCanceled(c, "Job was canceled")
	}
	return response.ServiceError(c, err.Error())
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
