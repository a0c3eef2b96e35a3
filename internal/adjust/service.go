package adjust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/pricing"
)

var (
	ErrLogNotFound         = errors.New("activity log entry not found")
	ErrAlreadyRolledBack   = errors.New("activity log entry already rolled back")
	ErrSnapshotUnavailable = errors.New("snapshot for activity log entry is no longer available")
)

// Service applies preset mutations and reverts them. Every mutation runs in
// one transaction that captures the configs it replaces.
type Service struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time

	// serialises mutations within this process; the immediate SQLite
	// transaction covers other processes.
	mu sync.Mutex
}

func NewService(database *sqlx.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: database, logger: logger, now: time.Now}
}

// BulkAdjustment raises or lowers every preset of a category by Percent.
type BulkAdjustment struct {
	Category string
	Percent  float64
	Actor    string
}

type BulkResult struct {
	LogID         string `json:"logId"`
	AffectedCount int    `json:"affectedCount"`
}

// ApplyBulkAdjustment scales all presets of a category. The log entry is
// written even when the category has no presets.
func (s *Service) ApplyBulkAdjustment(ctx context.Context, req BulkAdjustment) (BulkResult, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return BulkResult{}, &pricing.ValidationError{Field: "category", Reason: "is required"}
	}
	if math.IsNaN(req.Percent) || math.IsInf(req.Percent, 0) || req.Percent == 0 {
		return BulkResult{}, &pricing.ValidationError{Field: "percent", Reason: "must be a non-zero number"}
	}
	if req.Percent <= -100 {
		return BulkResult{}, &pricing.ValidationError{Field: "percent", Reason: "must be greater than -100"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	logID := uuid.NewString()
	details := Details{Category: req.Category, Percent: req.Percent}

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		presets, err := catalog.PresetsByCategory(ctx, tx, req.Category)
		if err != nil {
			return err
		}

		scaled := make([]string, len(presets))
		for i, p := range presets {
			out, err := pricing.ScaleConfig(pricing.Model(p.Model), []byte(p.Config), req.Percent)
			if err != nil {
				return fmt.Errorf("scale preset %s: %w", p.Key, pricing.WithPreset(err, p.Key))
			}
			scaled[i] = string(out)
			details.Snapshots = append(details.Snapshots, SnapshotRef{
				PresetID:    p.ID,
				PresetKey:   p.Key,
				FromVersion: p.Version,
				ToVersion:   p.Version + 1,
			})
		}
		details.AffectedCount = len(presets)

		if err := appendEntry(ctx, tx, logID, ActionBulkAdjust, req.Actor, details, "", now); err != nil {
			return err
		}
		for i, p := range presets {
			if err := saveSnapshot(ctx, tx, p, logID, now); err != nil {
				return err
			}
			if err := catalog.WritePresetConfig(ctx, tx, p.ID, p.Model, scaled[i], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}

	s.logger.Info("bulk adjustment applied",
		zap.String("log_id", logID),
		zap.String("category", req.Category),
		zap.Float64("percent", req.Percent),
		zap.Int("affected", details.AffectedCount),
		zap.String("actor", req.Actor),
	)
	return BulkResult{LogID: logID, AffectedCount: details.AffectedCount}, nil
}

// FormulaUpdate replaces one preset's config. An empty Model keeps the current one.
type FormulaUpdate struct {
	PresetKey string
	Model     pricing.Model
	Config    json.RawMessage
	Actor     string
}

// UpdateFormula validates and stores a new config for one preset.
func (s *Service) UpdateFormula(ctx context.Context, req FormulaUpdate) (string, error) {
	if len(req.Config) == 0 {
		return "", &pricing.ValidationError{Field: "config", Reason: "is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	logID := uuid.NewString()

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		p, err := catalog.PresetByKey(ctx, tx, req.PresetKey)
		if err != nil {
			return err
		}
		model := p.Model
		if req.Model != "" {
			model = string(req.Model)
		}
		if _, err := pricing.ParseConfig(pricing.Model(model), req.Config); err != nil {
			return &pricing.ValidationError{Field: "config", Reason: err.Error()}
		}

		details := Details{
			PresetKey:     p.Key,
			AffectedCount: 1,
			Snapshots:     []SnapshotRef{{PresetID: p.ID, PresetKey: p.Key, FromVersion: p.Version, ToVersion: p.Version + 1}},
		}
		if err := appendEntry(ctx, tx, logID, ActionFormulaUpdate, req.Actor, details, "", now); err != nil {
			return err
		}
		if err := saveSnapshot(ctx, tx, p, logID, now); err != nil {
			return err
		}
		return catalog.WritePresetConfig(ctx, tx, p.ID, model, string(req.Config), now)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("preset formula updated",
		zap.String("log_id", logID),
		zap.String("preset", req.PresetKey),
		zap.String("actor", req.Actor),
	)
	return logID, nil
}

// RollbackRequest reverts LogID, or the most recent revertible mutation when empty.
type RollbackRequest struct {
	LogID string
	Actor string
}

type RollbackResult struct {
	LogID         string `json:"logId"`
	RevertedLogID string `json:"revertedLogId"`
	RestoredCount int    `json:"restoredCount"`
}

type versionRow struct {
	PresetID int64  `db:"preset_id"`
	Version  int64  `db:"version"`
	Model    string `db:"model"`
	Config   string `db:"config"`
}

// Rollback restores every preset a mutation touched to its captured config.
// The rollback is logged with its own snapshots, so it can be reverted too.
func (s *Service) Rollback(ctx context.Context, req RollbackRequest) (RollbackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := RollbackResult{LogID: uuid.NewString()}

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var (
			target logRow
			err    error
		)
		if strings.TrimSpace(req.LogID) == "" {
			target, err = latestRevertible(ctx, tx)
		} else {
			target, err = entryByID(ctx, tx, strings.TrimSpace(req.LogID))
		}
		if err != nil {
			return err
		}
		if target.RevertedBy.Valid {
			return ErrAlreadyRolledBack
		}
		result.RevertedLogID = target.ID

		var original Details
		if err := json.Unmarshal([]byte(target.Details), &original); err != nil {
			return fmt.Errorf("decode details of log entry %s: %w", target.ID, err)
		}

		var versions []versionRow
		if err := tx.SelectContext(ctx, &versions, `
			SELECT preset_id, version, model, config
			FROM preset_versions
			WHERE log_id = ?
			ORDER BY id
		`, target.ID); err != nil {
			return fmt.Errorf("query snapshots of log entry %s: %w", target.ID, err)
		}
		if len(versions) < len(original.Snapshots) {
			return ErrSnapshotUnavailable
		}

		expected := make(map[int64]int64, len(original.Snapshots))
		for _, ref := range original.Snapshots {
			expected[ref.PresetID] = ref.ToVersion
		}

		current := make([]catalog.PresetRecord, len(versions))
		details := Details{AffectedCount: len(versions)}
		for i, v := range versions {
			p, err := catalog.PresetByID(ctx, tx, v.PresetID)
			if err != nil {
				return fmt.Errorf("load preset %d for rollback: %w", v.PresetID, err)
			}
			if want, ok := expected[p.ID]; ok && p.Version != want {
				s.logger.Warn("preset changed after the mutation being rolled back",
					zap.String("log_id", target.ID),
					zap.String("preset", p.Key),
					zap.Int64("expected_version", want),
					zap.Int64("current_version", p.Version),
				)
			}
			current[i] = p
			details.Snapshots = append(details.Snapshots, SnapshotRef{
				PresetID:    p.ID,
				PresetKey:   p.Key,
				FromVersion: p.Version,
				ToVersion:   p.Version + 1,
			})
		}

		if err := appendEntry(ctx, tx, result.LogID, ActionRollback, req.Actor, details, target.ID, now); err != nil {
			return err
		}
		for i, v := range versions {
			if err := saveSnapshot(ctx, tx, current[i], result.LogID, now); err != nil {
				return err
			}
			if err := catalog.WritePresetConfig(ctx, tx, v.PresetID, v.Model, v.Config, now); err != nil {
				return err
			}
		}
		result.RestoredCount = len(versions)
		return nil
	})
	if err != nil {
		return RollbackResult{}, err
	}

	s.logger.Info("mutation rolled back",
		zap.String("log_id", result.LogID),
		zap.String("reverted_log_id", result.RevertedLogID),
		zap.Int("restored", result.RestoredCount),
		zap.String("actor", req.Actor),
	)
	return result, nil
}

// PruneSnapshots deletes captured configs older than cutoff. Activity log rows
// are kept; their rollback fails with ErrSnapshotUnavailable afterwards.
func (s *Service) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM preset_versions WHERE created_at < ?`, cutoff.UTC().Format(catalog.TimeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune preset snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned snapshots: %w", err)
	}
	if n > 0 {
		s.logger.Info("preset snapshots pruned", zap.Int64("removed", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func saveSnapshot(ctx context.Context, tx *sqlx.Tx, p catalog.PresetRecord, logID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO preset_versions (preset_id, version, model, config, log_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Version, p.Model, p.Config, logID, now.UTC().Format(catalog.TimeLayout)); err != nil {
		return fmt.Errorf("snapshot preset %s: %w", p.Key, err)
	}
	return nil
}
