package handlers

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/postpilot/postpilot/internal/service"
)

type AssetHandler struct {
	s service.AssetService
}

func NewAssetHandler(s service.AssetService) *AssetHandler {
	return &AssetHandler{s: s}
}

// UploadAsset stores a media file and returns its public URL for use in CSV
// media_urls columns. Requires the Postgres store and R2 credentials.
func (h *AssetHandler) UploadAsset(c *fiber.Ctx) error {
	if h.s == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Media asset storage is not configured",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}

	asset, err := h.s.Upload(c.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMediaType) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported media type",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to upload asset",
		})
	}

	return c.Status(fiber.StatusOK).JSON(asset)
}

func (h *AssetHandler) ListAssets(c *fiber.Ctx) error {
	if h.s == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Media asset storage is not configured",
		})
	}

	assets, err := h.s.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list assets",
		})
	}

	return c.Status(fiber.StatusOK).JSON(assets)
}
