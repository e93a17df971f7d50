package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pod-console/internal/api/dto"
)

// Fetcher reads JSON from the booking API.
type Fetcher interface {
	Get(ctx context.Context, path string, out any) error
}

// ScreensHandler renders the console's data screens from the booking API.
type ScreensHandler struct {
	api Fetcher
}

// NewScreensHandler constructs handler.
func NewScreensHandler(api Fetcher) *ScreensHandler {
	return &ScreensHandler{api: api}
}

// Show returns a handler for GET /<screen>, backed by GET <api>/<screen>.
// API errors, including the 401/403 that end the session, are passed on
// with their original status.
func (h *ScreensHandler) Show(screen string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var data json.RawMessage
		if err := h.api.Get(c.UserContext(), "/"+screen, &data); err != nil {
			return err
		}
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return c.JSON(dto.ScreenResponse{Screen: screen, Data: data})
	}
}
