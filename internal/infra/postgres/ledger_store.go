package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// LedgerStore is the answers table accessed through bun. The unique index on
// (user_id, question_id) enforces one answer per question.
type LedgerStore struct {
	db *bun.DB
}

func NewLedgerStore(db *bun.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, entry domain.LedgerEntry) error {
	row := answerFromDomain(entry)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyAnswered
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *LedgerStore) Entry(ctx context.Context, id uuid.UUID) (domain.LedgerEntry, error) {
	var row answerModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("select answer: %w", err)
	}
	return row.toDomain(), nil
}

func (s *LedgerStore) Since(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	var rows []answerModel
	q := s.db.NewSelect().Model(&rows).Order("submitted_at ASC", "id ASC")
	if !since.IsZero() {
		q = q.Where("submitted_at >= ?", since.UTC())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	return answersToDomain(rows), nil
}

func (s *LedgerStore) ForQuestion(ctx context.Context, questionID string) ([]domain.LedgerEntry, error) {
	var rows []answerModel
	err := s.db.NewSelect().Model(&rows).
		Where("question_id = ?", questionID).
		Order("submitted_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers for %s: %w", questionID, err)
	}
	return answersToDomain(rows), nil
}

// totalRow is one aggregated leaderboard row.
type totalRow struct {
	UserID   string `bun:"user_id"`
	Username string `bun:"username"`
	Points   int    `bun:"points"`
}

// Totals aggregates in the database; only one row per user crosses the wire.
func (s *LedgerStore) Totals(ctx context.Context, since time.Time) ([]domain.LeaderboardEntry, error) {
	var rows []totalRow
	q := s.db.NewSelect().
		TableExpr("answers").
		ColumnExpr("user_id").
		ColumnExpr("(array_agg(username ORDER BY submitted_at, id))[1] AS username").
		ColumnExpr("SUM(points) AS points").
		Group("user_id").
		OrderExpr("SUM(points) DESC, MIN(submitted_at) ASC, user_id ASC")
	if !since.IsZero() {
		q = q.Where("submitted_at >= ?", since.UTC())
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("aggregate answers: %w", err)
	}
	totals := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		totals = append(totals, domain.LeaderboardEntry{UserID: r.UserID, Username: r.Username, Points: r.Points})
	}
	return totals, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
