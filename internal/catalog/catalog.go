// Package catalog records which model files were turned into which outputs.
package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/embell139/prep-ILAMB/internal/model"
)

// Entry describes one processed monthly file.
type Entry struct {
	CatalogID   uuid.UUID
	RunID       model.RunID
	Period      model.Period
	Input       string
	Output      string
	ObjectKey   string // empty when the file was not uploaded
	ProcessedAt time.Time
}
