package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/postpilot/postpilot/internal/service"
)

type UploadHandler struct {
	s service.IngestService
}

func NewUploadHandler(s service.IngestService) *UploadHandler {
	return &UploadHandler{s: s}
}

// UploadCSV ingests a CSV of posts and threads. The batch is all-or-nothing:
// any invalid row rejects the whole upload and the full error list is
// returned.
func (h *UploadHandler) UploadCSV(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("csv_file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "csv_file is required",
		})
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file type. Please upload a CSV file.",
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

	result, err := h.s.Ingest(c.Context(), file)
	if err != nil {
		var batchErr *service.BatchError
		if errors.As(err, &batchErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  batchErr.Error(),
				"errors": batchErr.Rows,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to schedule posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
