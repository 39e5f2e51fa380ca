package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"rollguard/internal/risk/models"
	id "rollguard/pkg/domain"
	"rollguard/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresFlagStore persists flags in the risk_flags table.
type PostgresFlagStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresFlagStore {
	return &PostgresFlagStore{db: db}
}

const flagColumns = `id, entity_type, entity_id, tier, score, rule_id, reason, explanation,
	created_at, resolved, resolved_by, resolved_at`

// Add inserts every flag in one transaction; either all land or none do.
func (s *PostgresFlagStore) Add(ctx context.Context, flags ...*models.Flag) error {
	if len(flags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flag insert: %w", err)
	}
	if err := insertFlags(ctx, tx, flags); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flag insert: %w", err)
	}
	return nil
}

func insertFlags(ctx context.Context, tx *sql.Tx, flags []*models.Flag) error {
	query := `
		INSERT INTO risk_flags (` + flagColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, f := range flags {
		_, err := tx.ExecContext(ctx, query,
			uuid.UUID(f.ID),
			string(f.EntityType),
			f.EntityID,
			string(f.Tier),
			f.Score,
			string(f.RuleID),
			f.Reason,
			f.Explanation,
			f.CreatedAt,
			f.Resolved,
			nullString(f.ResolvedBy),
			f.ResolvedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert flag: %w", err)
		}
	}
	return nil
}

func (s *PostgresFlagStore) Get(ctx context.Context, flagID id.FlagID) (*models.Flag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flagColumns+` FROM risk_flags WHERE id = $1`, uuid.UUID(flagID))
	f, err := scanFlag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}
	return f, nil
}

// List returns flags matching filter (BoothID is not applied here), newest first.
func (s *PostgresFlagStore) List(ctx context.Context, filter models.FlagFilter) ([]*models.Flag, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.Tiers) > 0 {
		tiers := make([]string, len(filter.Tiers))
		for i, t := range filter.Tiers {
			tiers[i] = string(t)
		}
		where = append(where, "tier = ANY("+arg(pq.Array(tiers))+"::text[])")
	}
	if filter.EntityType != "" {
		where = append(where, "entity_type = "+arg(string(filter.EntityType)))
	}
	if filter.Resolved != nil {
		where = append(where, "resolved = "+arg(*filter.Resolved))
	}
	if filter.RuleID != "" {
		where = append(where, "rule_id = "+arg(string(filter.RuleID)))
	}

	query := `SELECT ` + flagColumns + ` FROM risk_flags`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var out []*models.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Resolve is a compare-and-set on resolved = false. A losing or repeated
// caller gets the stored resolution with sentinel.ErrAlreadyUsed.
func (s *PostgresFlagStore) Resolve(ctx context.Context, flagID id.FlagID, by string, at time.Time) (*models.Flag, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE risk_flags
		SET resolved = TRUE, resolved_by = $2, resolved_at = $3
		WHERE id = $1 AND resolved = FALSE
		RETURNING `+flagColumns,
		uuid.UUID(flagID), by, at,
	)
	f, err := scanFlag(row)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve flag: %w", err)
	}

	existing, err := s.Get(ctx, flagID)
	if err != nil {
		return nil, err
	}
	return existing, sentinel.ErrAlreadyUsed
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlag(row scanner) (*models.Flag, error) {
	var (
		f          models.Flag
		flagID     uuid.UUID
		entityType string
		tier       string
		rule       string
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&flagID, &entityType, &f.EntityID, &tier, &f.Score, &rule, &f.Reason, &f.Explanation,
		&f.CreatedAt, &f.Resolved, &resolvedBy, &resolvedAt); err != nil {
		return nil, err
	}
	f.ID = id.FlagID(flagID)
	f.EntityType = models.EntityType(entityType)
	f.Tier = models.Tier(tier)
	f.RuleID = models.RuleID(rule)
	f.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		f.ResolvedAt = &t
	}
	return &f, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
