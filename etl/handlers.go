package etl

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handlers exposes the batch trigger over HTTP.
type Handlers struct {
	extractor *Extractor
	logger    *zap.Logger
}

func NewHandlers(extractor *Extractor, logger *zap.Logger) *Handlers {
	return &Handlers{extractor: extractor, logger: logger}
}

// Extract runs the batch and reports the per-user outcome. All-success is
// 200; partial failure is 207 Multi-Status; only a failure to enumerate
// connections is a 500.
// POST /xero-etl-extract
func (h *Handlers) Extract(c *fiber.Ctx) error {
	summary, err := h.extractor.Run(c.Context())
	if err != nil {
		h.logger.Error("extraction aborted", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	status := fiber.StatusOK
	if summary.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(summary)
}
