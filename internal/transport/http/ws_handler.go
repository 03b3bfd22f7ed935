package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

// WSHandler exposes the game command surface over a websocket: one
// connection drives one game. Commands map one-to-one onto service
// operations; state snapshots stream back after every transition.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
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
	Selected int  `json:"selected"`
	Timeout  bool `json:"timeout"`
}

type submitScorePayload struct {
	Name string `json:"name"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type qualifyPayload struct {
	Qualifies bool `json:"qualifies"`
}

type leaderboardPayload struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
}

type clearedPayload struct {
	Cleared bool `json:"cleared"`
}

// ServeWS upgrades the request, creates a game for the connection, and
// relays commands until the peer goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	game := h.service.NewGame()
	defer h.service.EndGame(game.GameID)

	updates, cancel, err := h.service.Subscribe(game.GameID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		finishedSeen := false
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
				// Prompt for a name exactly once per finished game.
				if update.Status == domain.StatusFinished && !finishedSeen {
					finishedSeen = true
					qualifies, err := h.service.QualifiesForLeaderboard(r.Context(), game.GameID)
					if err == nil {
						select {
						case send <- outboundMessage[any]{Type: "highScore", Payload: qualifyPayload{Qualifies: qualifies}}:
						case <-closeSignals:
							return
						case <-writerDone:
							return
						}
					}
				}
				if update.Status != domain.StatusFinished {
					finishedSeen = false
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleCommand(r.Context(), game.GameID, inbound, send, writerDone)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleCommand(ctx context.Context, gameID string, inbound inboundMessage, send chan<- outboundMessage[any], writerDone <-chan struct{}) {
	// A dead writer must not wedge the read loop.
	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		// Illegal transitions are a contract violation by the client; log
		// and keep the session alive.
		log.Printf("command %q on game %s: %v", inbound.Type, gameID, err)
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	switch inbound.Type {
	case "start":
		if _, err := h.service.Start(ctx, gameID); err != nil {
			fail(err)
		}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(err)
			return
		}
		selected := payload.Selected
		if payload.Timeout {
			selected = domain.TimeoutAnswer
		}
		record, _, err := h.service.Answer(gameID, selected)
		if err != nil {
			fail(err)
			return
		}
		reply(outboundMessage[any]{Type: "answerResult", Payload: record})
	case "restart":
		if _, err := h.service.Restart(gameID); err != nil {
			fail(err)
		}
	case "submitScore":
		var payload submitScorePayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(err)
				return
			}
		}
		entry, err := h.service.SubmitHighScore(ctx, gameID, payload.Name)
		if err != nil {
			fail(err)
			return
		}
		reply(outboundMessage[any]{Type: "scoreSaved", Payload: entry})
	case "skipScore":
		if err := h.service.SkipHighScore(gameID); err != nil {
			fail(err)
		}
	case "leaderboard":
		entries, err := h.service.Leaderboard(ctx)
		if err != nil {
			fail(err)
			return
		}
		reply(outboundMessage[any]{Type: "leaderboard", Payload: leaderboardPayload{Entries: entries}})
	case "clearLeaderboard":
		cleared := h.service.ClearLeaderboard(ctx)
		reply(outboundMessage[any]{Type: "leaderboardCleared", Payload: clearedPayload{Cleared: cleared}})
	default:
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
}
