package http

import (
	"encoding/json"
	"net/http"

	"livetrivia/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler serves the websocket channel. It only ever answers requests: each
// inbound frame gets exactly one reply and the server never pushes on its own.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.GameService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

const maxFrameBytes = 4096

// Serve upgrades the request and answers resolve, answer, scoreboard and
// leaderboards requests until the client goes away.
func (h *WSHandler) Serve(c *gin.Context) {
	player := playerFrom(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	ctx := c.Request.Context()
	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("user_id", player.ID).Msg("ws write error")
				// Unblocks the read loop.
				_ = conn.Close()
				return
			}
		}
	}()

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	reply := func(typ, id string, payload interface{}, err error) {
		if err != nil {
			status := statusFor(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				h.log.Error().Err(err).Str("type", typ).Msg("ws request failed")
				msg = "internal error"
			}
			push(outboundMessage{Type: "error", ID: id, Payload: errorPayload{Message: msg, Status: status}})
			return
		}
		push(outboundMessage{Type: typ, ID: id, Payload: payload})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "resolve":
			view, err := h.service.Resolve(ctx, player)
			reply("session", inbound.ID, view, err)
		case "answer":
			var req answerRequest
			if err := json.Unmarshal(inbound.Payload, &req); err != nil {
				reply("", inbound.ID, nil, errBadPayload)
				continue
			}
			entry, err := h.service.SubmitAnswer(ctx, player, req.Answer, req.Points)
			reply("answerResult", inbound.ID, newAnswerResponse(entry), err)
		case "scoreboard":
			board, err := h.service.Scoreboard(ctx)
			reply("scoreboard", inbound.ID, board, err)
		case "leaderboards":
			lbs, err := h.service.Leaderboards(ctx)
			reply("leaderboards", inbound.ID, lbs, err)
		default:
			push(outboundMessage{Type: "error", ID: inbound.ID, Payload: errorPayload{
				Message: "unsupported message type",
				Status:  http.StatusBadRequest,
			}})
		}
	}

	close(send)
	<-writerDone
}
