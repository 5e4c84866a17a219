package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/postpilot/postpilot/internal/service"
)

type PostHandler struct {
	s service.StatusService
}

func NewPostHandler(s service.StatusService) *PostHandler {
	return &PostHandler{s: s}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), c.Query("status"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.PostInfo(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to get post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	err := h.s.CancelPost(c.Context(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		case errors.Is(err, service.ErrNotCancellable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Post is not pending and cannot be cancelled",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to cancel post",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post cancelled",
	})
}

func (h *PostHandler) GetThread(c *fiber.Ctx) error {
	posts, err := h.s.ThreadInfo(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrThreadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Thread not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to get thread",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) CancelThread(c *fiber.Ctx) error {
	cancelled, err := h.s.CancelThread(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrThreadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Thread not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to cancel thread",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":         "Thread cancelled",
		"posts_cancelled": cancelled,
	})
}

func (h *PostHandler) GetStats(c *fiber.Ctx) error {
	counts, err := h.s.Counts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to get stats",
		})
	}

	return c.Status(fiber.StatusOK).JSON(counts)
}
