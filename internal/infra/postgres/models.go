package postgres

import (
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID               string    `bun:"id,pk"`
	Text             string    `bun:"text,notnull"`
	Category         string    `bun:"category,notnull"`
	Difficulty       string    `bun:"difficulty,notnull"`
	CorrectChoice    string    `bun:"correct_choice,notnull"`
	Choices          []string  `bun:"choices,type:jsonb,notnull"`
	EliminationOrder []string  `bun:"elimination_order,type:jsonb,notnull"`
	FetchedAt        time.Time `bun:"fetched_at,notnull"`
}

func questionFromDomain(q domain.Question) questionModel {
	return questionModel{
		ID:               q.ID,
		Text:             q.Text,
		Category:         q.Category,
		Difficulty:       q.Difficulty,
		CorrectChoice:    q.CorrectChoice,
		Choices:          nonNil(q.Choices),
		EliminationOrder: nonNil(q.EliminationOrder),
		FetchedAt:        q.FetchedAt.UTC(),
	}
}

func (m questionModel) toDomain() domain.Question {
	return domain.Question{
		ID:               m.ID,
		Text:             m.Text,
		Category:         m.Category,
		Difficulty:       m.Difficulty,
		CorrectChoice:    m.CorrectChoice,
		Choices:          m.Choices,
		EliminationOrder: m.EliminationOrder,
		FetchedAt:        m.FetchedAt,
	}
}

type answerModel struct {
	bun.BaseModel `bun:"table:answers"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	UserID      string    `bun:"user_id,notnull"`
	Username    string    `bun:"username,notnull"`
	QuestionID  string    `bun:"question_id,notnull"`
	Answer      string    `bun:"answer,notnull"`
	Points      int       `bun:"points,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

func answerFromDomain(e domain.LedgerEntry) answerModel {
	return answerModel{
		ID:          e.ID,
		UserID:      e.UserID,
		Username:    e.Username,
		QuestionID:  e.QuestionID,
		Answer:      e.Answer,
		Points:      e.Points,
		SubmittedAt: e.SubmittedAt.UTC(),
	}
}

func (m answerModel) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:          m.ID,
		UserID:      m.UserID,
		Username:    m.Username,
		QuestionID:  m.QuestionID,
		Answer:      m.Answer,
		Points:      m.Points,
		SubmittedAt: m.SubmittedAt.UTC(),
	}
}

func answersToDomain(rows []answerModel) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
