package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jantenpas/llm-eval-studio/internal/dto"
	"github.com/jantenpas/llm-eval-studio/internal/eval"
	"github.com/jantenpas/llm-eval-studio/internal/service"
	"github.com/jantenpas/llm-eval-studio/internal/utils"
)

// RunHandler serves the evaluation run endpoints.
type RunHandler struct {
	service   service.RunService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRunHandler constructs a handler instance.
func NewRunHandler(service service.RunService, validate *validator.Validate, logger zerolog.Logger) *RunHandler {
	return &RunHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "run_handler").Logger(),
	}
}

// Register binds the run endpoints into the router group.
func (h *RunHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *RunHandler) create(c *fiber.Ctx) error {
	var payload dto.RunCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(response)
}

func (h *RunHandler) list(c *fiber.Ctx) error {
	summaries, err := h.service.List(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(summaries)
}

func (h *RunHandler) get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "run id required")
	}

	detail, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(detail)
}

func (h *RunHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "Run not found")
	case errors.Is(err, eval.ErrInvalidSuite):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("run operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
