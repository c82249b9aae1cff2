package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wendao/limitpulse/internal/limits"
	"github.com/wendao/limitpulse/internal/quote"
)

// Repository archives classified limit facts in Postgres for historical
// queries that outlive the file artifacts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new archive repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveLimitFacts replaces the archived facts for a (date, direction) pair.
// The replace runs in one transaction so readers never see a half-written
// day.
func (r *Repository) SaveLimitFacts(ctx context.Context, date string, direction limits.Direction, facts []limits.LimitFact) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM limit_facts
		WHERE trade_date = $1 AND direction = $2
	`, date, string(direction)); err != nil {
		return fmt.Errorf("failed to clear existing facts: %w", err)
	}

	query := `
		INSERT INTO limit_facts (
			trade_date, direction, security_code, security_name, board_type,
			rank, prev_close, last, limit_threshold_price,
			limit_rate_percent, actual_change_rate_percent, turnover, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, f := range facts {
		if _, err := tx.Exec(ctx, query,
			date, string(f.Direction), f.SecurityCode, f.SecurityName, string(f.BoardType),
			f.Rank, f.PrevClose, f.Last, f.LimitThresholdPrice,
			f.LimitRatePercent, f.ActualChangeRatePercent, f.Turnover, f.Volume,
		); err != nil {
			return fmt.Errorf("failed to insert fact %s: %w", f.SecurityCode, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListLimitFacts retrieves archived facts for a date and direction,
// ordered by rank then code.
func (r *Repository) ListLimitFacts(ctx context.Context, date string, direction limits.Direction) ([]limits.LimitFact, error) {
	query := `
		SELECT
			security_code, security_name, board_type, rank,
			prev_close, last, limit_threshold_price,
			limit_rate_percent, actual_change_rate_percent, turnover, volume
		FROM limit_facts
		WHERE trade_date = $1 AND direction = $2
		ORDER BY rank, security_code
	`

	rows, err := r.pool.Query(ctx, query, date, string(direction))
	if err != nil {
		return nil, fmt.Errorf("failed to query limit facts: %w", err)
	}
	defer rows.Close()

	var facts []limits.LimitFact
	for rows.Next() {
		var f limits.LimitFact
		var boardType string

		if err := rows.Scan(
			&f.SecurityCode, &f.SecurityName, &boardType, &f.Rank,
			&f.PrevClose, &f.Last, &f.LimitThresholdPrice,
			&f.LimitRatePercent, &f.ActualChangeRatePercent, &f.Turnover, &f.Volume,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f.BoardType = quote.BoardType(boardType)
		f.Direction = direction
		facts = append(facts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return facts, nil
}

// TradeDates lists the archived dates, newest first.
func (r *Repository) TradeDates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT trade_date
		FROM limit_facts
		ORDER BY trade_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
