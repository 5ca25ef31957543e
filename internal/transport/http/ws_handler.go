package http

import (
	"encoding/json"
	"log"
	"net/http"

	"adaptive-quiz/internal/app"
	"adaptive-quiz/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type joinedPayload struct {
	SessionID string `json:"sessionId"`
	QuizID    string `json:"quizId"`
	Title     string `json:"title,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one quiz session over the connection.
// Only the read loop touches the session store; state snapshots reach the
// writer goroutine through the send channel.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	store, quiz, err := h.service.Start(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	sessionID := uuid.NewString()
	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error session=%s: %v", sessionID, err)
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

	push(outboundMessage{Type: "joined", Payload: joinedPayload{SessionID: sessionID, QuizID: quiz.ID, Title: quiz.Title}})
	unsubscribe := store.Subscribe(func(state domain.SessionState) {
		push(outboundMessage{Type: "state", Payload: state})
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			result, ok := store.AnswerQuestion(ctx, payload.Answer)
			if !ok {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: "no current question"}})
				continue
			}
			push(outboundMessage{Type: "answerResult", Payload: result})
		case "reset":
			store.ResetQuiz()
		case "nextRound":
			store.StartNextRound()
		case "clearStats":
			store.ClearStats(ctx)
		case "stats":
			push(outboundMessage{Type: "quizStats", Payload: store.GetQuizStats(quiz.ID)})
		default:
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	unsubscribe()
	close(send)
	<-writerDone
}
