package adjust

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/printquote/internal/catalog"
)

// Action is the kind of mutation an activity log entry records.
type Action string

const (
	ActionBulkAdjust    Action = "bulk_adjust"
	ActionFormulaUpdate Action = "formula_update"
	ActionRollback      Action = "rollback"
)

// EntityPricingPreset is the only entity the log currently records.
const EntityPricingPreset = "pricing_preset"

const defaultActivityLimit = 100

// Details is the JSON body of an activity log entry. Config bodies live in
// preset_versions; the log keeps the version bookkeeping for audit.
type Details struct {
	Category      string        `json:"category,omitempty"`
	Percent       float64       `json:"percent,omitempty"`
	PresetKey     string        `json:"presetKey,omitempty"`
	AffectedCount int           `json:"affectedCount"`
	Snapshots     []SnapshotRef `json:"snapshots"`
}

// SnapshotRef names the preset version a mutation replaced and the one it produced.
type SnapshotRef struct {
	PresetID    int64  `json:"presetId"`
	PresetKey   string `json:"presetKey"`
	FromVersion int64  `json:"fromVersion"`
	ToVersion   int64  `json:"toVersion"`
}

// Entry is one activity log row as shown to operators.
type Entry struct {
	ID           string    `json:"id"`
	Action       Action    `json:"action"`
	Entity       string    `json:"entity"`
	Actor        string    `json:"actor"`
	Details      Details   `json:"details"`
	RevertsLogID string    `json:"revertsLogId,omitempty"`
	RevertedBy   string    `json:"revertedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type logRow struct {
	ID           string         `db:"id"`
	Seq          int64          `db:"seq"`
	Action       string         `db:"action"`
	Entity       string         `db:"entity"`
	Actor        string         `db:"actor"`
	Details      string         `db:"details"`
	RevertsLogID sql.NullString `db:"reverts_log_id"`
	RevertedBy   sql.NullString `db:"reverted_by"`
	CreatedAt    string         `db:"created_at"`
}

func (r logRow) entry() (Entry, error) {
	var details Details
	if err := json.Unmarshal([]byte(r.Details), &details); err != nil {
		return Entry{}, fmt.Errorf("decode details of log entry %s: %w", r.ID, err)
	}
	created, err := time.Parse(catalog.TimeLayout, r.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at of log entry %s: %w", r.ID, err)
	}
	return Entry{
		ID:           r.ID,
		Action:       Action(r.Action),
		Entity:       r.Entity,
		Actor:        r.Actor,
		Details:      details,
		RevertsLogID: r.RevertsLogID.String,
		RevertedBy:   r.RevertedBy.String,
		CreatedAt:    created,
	}, nil
}

const logSelect = `
	SELECT l.id, l.seq, l.action, l.entity, l.actor, l.details, l.reverts_log_id, l.created_at,
	       r.id AS reverted_by
	FROM activity_log l
	LEFT JOIN activity_log r ON r.reverts_log_id = l.id`

func appendEntry(ctx context.Context, tx *sqlx.Tx, id string, action Action, actor string, details Details, reverts string, now time.Time) error {
	if details.Snapshots == nil {
		details.Snapshots = []SnapshotRef{}
	}
	body, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode log details: %w", err)
	}

	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM activity_log`); err != nil {
		return fmt.Errorf("next log sequence: %w", err)
	}

	var revertsArg any
	if reverts != "" {
		revertsArg = reverts
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (id, seq, action, entity, actor, details, reverts_log_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, seq, string(action), EntityPricingPreset, actor, string(body), revertsArg, now.UTC().Format(catalog.TimeLayout)); err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

func entryByID(ctx context.Context, q sqlx.QueryerContext, id string) (logRow, error) {
	var row logRow
	if err := sqlx.GetContext(ctx, q, &row, logSelect+` WHERE l.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return logRow{}, ErrLogNotFound
		}
		return logRow{}, fmt.Errorf("query log entry %s: %w", id, err)
	}
	return row, nil
}

// latestRevertible is the newest mutation that is neither a rollback nor already reverted.
func latestRevertible(ctx context.Context, q sqlx.QueryerContext) (logRow, error) {
	var row logRow
	err := sqlx.GetContext(ctx, q, &row, logSelect+`
		WHERE l.action != ? AND r.id IS NULL
		ORDER BY l.seq DESC
		LIMIT 1`, string(ActionRollback))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return logRow{}, ErrLogNotFound
		}
		return logRow{}, fmt.Errorf("query latest log entry: %w", err)
	}
	return row, nil
}

// ActivityQuery filters the activity listing. Search matches action, actor or details text.
type ActivityQuery struct {
	Search string
	Limit  int
}

// ListActivity returns log entries newest first.
func (s *Service) ListActivity(ctx context.Context, query ActivityQuery) ([]Entry, error) {
	limit := query.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultActivityLimit
	}

	sqlQuery := logSelect
	args := []any{}
	if search := strings.TrimSpace(query.Search); search != "" {
		like := "%" + search + "%"
		sqlQuery += ` WHERE l.action LIKE ? OR l.actor LIKE ? OR l.details LIKE ?`
		args = append(args, like, like, like)
	}
	sqlQuery += ` ORDER BY l.seq DESC LIMIT ?`
	args = append(args, limit)

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
