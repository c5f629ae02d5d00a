package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"livetrivia/internal/domain"

	"github.com/uptrace/bun"
)

// QuestionStore is the append-only questions table.
type QuestionStore struct {
	db *bun.DB
}

func NewQuestionStore(db *bun.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) SaveQuestion(ctx context.Context, q domain.Question) error {
	row := questionFromDomain(q)
	_, err := s.db.NewInsert().Model(&row).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *QuestionStore) Question(ctx context.Context, id string) (domain.Question, error) {
	var row questionModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrNoQuestion
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("select question: %w", err)
	}
	return row.toDomain(), nil
}
