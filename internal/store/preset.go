package store

import (
	"context"
	"database/sql"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/google/uuid"
)

// PresetStore defines the interface for report preset persistence.
type PresetStore interface {
	// CreatePreset persists a new preset.
	// Returns ErrPresetNameExists if the user already has a preset with
	// the same name, or ErrInvalidEntity if validation fails.
	CreatePreset(ctx context.Context, preset *domain.ReportPreset) error

	// GetPreset retrieves a preset by ID, scoped to the owning user.
	// Returns ErrPresetNotFound if the preset does not exist or belongs
	// to a different user.
	GetPreset(ctx context.Context, userID, presetID uuid.UUID) (*domain.ReportPreset, error)

	// ListPresetsByUser returns the user's presets ordered by name.
	ListPresetsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReportPreset, error)

	// DeletePreset removes a preset, scoped to the owning user.
	// Returns ErrPresetNotFound if the preset does not exist or belongs
	// to a different user.
	DeletePreset(ctx context.Context, userID, presetID uuid.UUID) error

	// WithTx returns a new PresetStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) PresetStore
}
