package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/pkg/logger"
)

// TableCounter reports row counts of the relational tables.
type TableCounter interface {
	TableCounts() (map[string]int64, error)
}

// VectorCounter reports the number of indexed documents.
type VectorCounter interface {
	Count() int
}

type StatsHandler struct {
	tables TableCounter
	vector VectorCounter
}

func NewStatsHandler(tables TableCounter, vector VectorCounter) *StatsHandler {
	return &StatsHandler{
		tables: tables,
		vector: vector,
	}
}

func (h *StatsHandler) HandleStats(c *fiber.Ctx) error {
	counts, err := h.tables.TableCounts()
	if err != nil {
		logger.Error("Failed to collect table counts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect stats",
		})
	}

	return c.JSON(fiber.Map{
		"tables":           counts,
		"vector_documents": h.vector.Count(),
	})
}
