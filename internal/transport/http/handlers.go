package http

import (
	"net/http"

	"livetrivia/internal/app"
	"livetrivia/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type handlers struct {
	service *app.GameService
}

type answerRequest struct {
	Answer string `json:"answer"`
	// Points is the client's claimed score; only used when the server trusts clients.
	Points int `json:"points"`
}

type answerResponse struct {
	ID         uuid.UUID `json:"id"`
	QuestionID string    `json:"questionId"`
	Correct    bool      `json:"correct"`
	Points     int       `json:"points"`
}

func newAnswerResponse(e domain.LedgerEntry) answerResponse {
	return answerResponse{ID: e.ID, QuestionID: e.QuestionID, Correct: e.Correct(), Points: e.Points}
}

func (h *handlers) session(c *gin.Context) {
	view, err := h.service.Resolve(c.Request.Context(), playerFrom(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, view)
}

func (h *handlers) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid answer body")
		return
	}
	entry, err := h.service.SubmitAnswer(c.Request.Context(), playerFrom(c), req.Answer, req.Points)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, newAnswerResponse(entry))
}

func (h *handlers) waiting(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid answer id")
		return
	}
	view, err := h.service.Waiting(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, view)
}

func (h *handlers) scoreboard(c *gin.Context) {
	board, err := h.service.Scoreboard(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, board)
}

func (h *handlers) leaderboards(c *gin.Context) {
	lbs, err := h.service.Leaderboards(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, lbs)
}

func (h *handlers) leaderboard(c *gin.Context) {
	w, err := domain.ParseWindow(c.Param("window"))
	if err != nil {
		failErr(c, err)
		return
	}
	totals, err := h.service.WindowedTotals(c.Request.Context(), w)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, totals)
}

func (h *handlers) rank(c *gin.Context) {
	w, err := domain.ParseWindow(c.DefaultQuery("window", domain.WindowAll.String()))
	if err != nil {
		failErr(c, err)
		return
	}
	rank, err := h.service.RankOf(c.Request.Context(), playerFrom(c).ID, w)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, rank)
}

func (h *handlers) message(c *gin.Context) {
	msg, err := h.service.Message(c.Request.Context(), playerFrom(c).ID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"message": msg})
}
