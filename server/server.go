// Package server exposes the pipelines over a WebSocket connection: clients
// send questions and ingestion requests as JSON messages and receive status,
// answer, and error messages back.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xhad/scholar/internal/models"
	"github.com/xhad/scholar/pkg/app"
	"github.com/xhad/scholar/pkg/queue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the wire envelope in both directions. Incoming types: "ask",
// "ingest". Outgoing types: "status", "answer", "error".
type Message struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type askRequest struct {
	OwnerID            string               `json:"owner_id"`
	Question           string               `json:"question"`
	AllowedDocumentIDs []string             `json:"allowed_document_ids"`
	History            []models.ChatMessage `json:"history"`
}

type answerPayload struct {
	Text      string            `json:"text"`
	Citations []models.Citation `json:"citations"`
}

type WSServer struct {
	app   *app.App
	queue *queue.InProcessQueue
}

func NewWSServer(a *app.App) *WSServer {
	dispatcher := queue.NewDispatcher(func(ctx context.Context, msg queue.Message) error {
		var req models.IngestRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return fmt.Errorf("failed to decode ingest message: %v", err)
		}
		return a.Ingestion.Ingest(ctx, req)
	})

	return &WSServer{
		app: a,
		queue: queue.NewInProcessQueue(queue.QueueConfig{
			BufferSize:    a.Config.Queue.BufferSize,
			MaxDeliveries: a.Config.Queue.MaxDeliveries,
		}, dispatcher),
	}
}

// Start runs the ingestion worker and serves until the context ends.
func (s *WSServer) Start(ctx context.Context, addr string) error {
	go s.queue.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("listening on %s", addr)
	return srv.ListenAndServe()
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading message: %v", err)
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, "error", "invalid message")
			continue
		}

		switch msg.Type {
		case "ask":
			s.handleAsk(r.Context(), conn, msg)
		case "ingest":
			s.handleIngest(conn, msg)
		default:
			s.sendMessage(conn, "error", fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func (s *WSServer) handleAsk(ctx context.Context, conn *websocket.Conn, msg Message) {
	var req askRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.sendMessage(conn, "error", "invalid ask payload")
		return
	}
	if req.OwnerID == "" || req.Question == "" {
		s.sendMessage(conn, "error", "owner_id and question are required")
		return
	}

	answer, err := s.app.Query.Answer(ctx, models.QuestionRequest{
		OwnerID:            req.OwnerID,
		Question:           req.Question,
		AllowedDocumentIDs: req.AllowedDocumentIDs,
		History:            req.History,
	})
	if err != nil {
		log.Printf("question failed for owner %s: %v", req.OwnerID, err)
		s.sendMessage(conn, "error", "failed to answer question")
		return
	}

	payload, err := json.Marshal(answerPayload{Text: answer.Text, Citations: answer.Citations})
	if err != nil {
		s.sendMessage(conn, "error", "failed to encode answer")
		return
	}
	s.send(conn, Message{Type: "answer", Data: payload})
}

func (s *WSServer) handleIngest(conn *websocket.Conn, msg Message) {
	var req models.IngestRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.sendMessage(conn, "error", "invalid ingest payload")
		return
	}
	if req.OwnerID == "" {
		s.sendMessage(conn, "error", "owner_id is required")
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.NewString()
	}

	if err := s.app.Papers.CreatePaper(context.Background(), models.Paper{
		ID:        req.DocumentID,
		OwnerID:   req.OwnerID,
		ObjectKey: req.ObjectKey,
		Title:     req.Title,
		Authors:   req.Authors,
		Abstract:  req.Abstract,
		Status:    models.StatusPending,
	}); err != nil {
		s.sendMessage(conn, "error", "failed to record paper")
		return
	}

	qmsg, err := queue.NewIngestMessage(req)
	if err != nil {
		s.sendMessage(conn, "error", "failed to queue paper")
		return
	}
	if err := s.queue.Enqueue(qmsg); err != nil {
		s.sendMessage(conn, "error", "ingestion queue is full")
		return
	}

	s.sendMessage(conn, "status", fmt.Sprintf("queued document %s", req.DocumentID))
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType, content string) {
	s.send(conn, Message{Type: msgType, Content: content})
}

func (s *WSServer) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
