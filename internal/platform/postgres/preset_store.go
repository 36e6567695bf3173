package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/crewviz/reportd/internal/platform/logger"
	"github.com/crewviz/reportd/internal/store"
	"github.com/google/uuid"
)

// PresetStore implements the store.PresetStore interface using PostgreSQL.
type PresetStore struct {
	db store.DBTX
}

// NewPresetStore creates a new PresetStore.
func NewPresetStore(db store.DBTX) *PresetStore {
	return &PresetStore{db: db}
}

// WithTx returns a new PresetStore that uses the provided transaction.
func (s *PresetStore) WithTx(tx *sql.Tx) store.PresetStore {
	return &PresetStore{db: tx}
}

// CreatePreset persists a new preset. The (user_id, name) unique
// constraint surfaces as ErrPresetNameExists.
func (s *PresetStore) CreatePreset(ctx context.Context, preset *domain.ReportPreset) error {
	log := logger.FromContext(ctx)

	if err := preset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	params, err := json.Marshal(preset.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal preset params: %w", err)
	}

	query := `
		INSERT INTO report_presets (id, user_id, name, report_type, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		preset.ID,
		preset.UserID,
		preset.Name,
		preset.Type,
		params,
		preset.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrPresetNameExists
		}
		log.Error("failed to create report preset",
			"preset_id", preset.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetPreset retrieves a preset scoped to the owning user.
func (s *PresetStore) GetPreset(ctx context.Context, userID, presetID uuid.UUID) (*domain.ReportPreset, error) {
	query := `
		SELECT id, user_id, name, report_type, params, created_at
		FROM report_presets
		WHERE id = $1 AND user_id = $2
	`
	preset, err := scanPreset(s.db.QueryRowContext(ctx, query, presetID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to get report preset: %w", MapError(err))
	}
	return preset, nil
}

// ListPresetsByUser returns the user's presets ordered by name.
func (s *PresetStore) ListPresetsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ReportPreset, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, user_id, name, report_type, params, created_at
		FROM report_presets
		WHERE user_id = $1
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list report presets",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to list report presets: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var presets []*domain.ReportPreset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report preset row: %w", err)
		}
		presets = append(presets, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report preset rows: %w", err)
	}

	return presets, nil
}

// DeletePreset removes a preset scoped to the owning user.
func (s *PresetStore) DeletePreset(ctx context.Context, userID, presetID uuid.UUID) error {
	query := `
		DELETE FROM report_presets
		WHERE id = $1 AND user_id = $2
	`
	result, err := s.db.ExecContext(ctx, query, presetID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete report preset: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrPresetNotFound
	}

	return nil
}

func scanPreset(row rowScanner) (*domain.ReportPreset, error) {
	var (
		preset domain.ReportPreset
		params []byte
	)
	if err := row.Scan(
		&preset.ID,
		&preset.UserID,
		&preset.Name,
		&preset.Type,
		&params,
		&preset.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &preset.Params); err != nil {
		return nil, fmt.Errorf("%w: preset params payload", domain.ErrInvalidFormat)
	}

	return &preset, nil
}
