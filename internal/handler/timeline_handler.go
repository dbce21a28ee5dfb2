package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-timeline/internal/dto"
	"github.com/noah-isme/gema-activity-timeline/internal/service"
	"github.com/noah-isme/gema-activity-timeline/internal/utils"
)

// TimelineHandler exposes the timeline of registered subjects.
type TimelineHandler struct {
	service service.TimelineService
	locales []string
	logger  zerolog.Logger
}

// NewTimelineHandler constructs the handler. locales lists the languages the
// Accept-Language header may select when no locale query is given.
func NewTimelineHandler(service service.TimelineService, locales []string, logger zerolog.Logger) *TimelineHandler {
	return &TimelineHandler{
		service: service,
		locales: locales,
		logger:  logger.With().Str("component", "timeline_handler").Logger(),
	}
}

// Register attaches timeline routes to the router group.
func (h *TimelineHandler) Register(router fiber.Router) {
	router.Get("/:subject/:id", h.show)
	router.Get("/:subject/:id/html", h.panel)
}

func (h *TimelineHandler) show(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Build(c.UserContext(), req, service.Options{})
	if err != nil {
		return h.fail(c, err)
	}

	return utils.OK(c, response, "timeline", fiber.Map{
		"count":     len(response.Entries),
		"cache_hit": response.CacheHit,
	})
}

func (h *TimelineHandler) panel(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	markup, err := h.service.RenderPanel(c.UserContext(), req, service.Options{})
	if err != nil {
		return h.fail(c, err)
	}

	c.Type("html", "utf-8")
	return c.SendString(markup)
}

func (h *TimelineHandler) parseRequest(c *fiber.Ctx) (dto.TimelineRequest, error) {
	id, err := parseParamUint(c, "id")
	if err != nil || id == 0 {
		return dto.TimelineRequest{}, errors.New("invalid subject id")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return dto.TimelineRequest{}, errors.New("invalid limit")
	}

	locale := c.Query("locale")
	if locale == "" && len(h.locales) > 0 && c.Get(fiber.HeaderAcceptLanguage) != "" {
		locale = c.AcceptsLanguages(h.locales...)
	}

	return dto.TimelineRequest{
		Subject:   c.Params("subject"),
		SubjectID: id,
		Relations: splitAndTrim(c.Query("relations")),
		Limit:     limit,
		Locale:    locale,
	}, nil
}

func (h *TimelineHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid timeline query", validationDetails(err))
	case errors.Is(err, service.ErrUnknownSubject):
		return utils.SendError(c, fiber.StatusNotFound, "timeline subject not found")
	case errors.Is(err, service.ErrUnknownRelation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("subject", c.Params("subject")).Msg("failed to build timeline")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build timeline")
	}
}
