// Package server exposes the document assistant over a websocket, one
// connection per client. Messages are JSON envelopes with a type, a text
// payload and an optional structured payload, mirrored in both directions.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/internal/types"
	"github.com/anvik/docsage/pkg/chunker"
	"github.com/anvik/docsage/pkg/config"
	"github.com/anvik/docsage/pkg/embedder"
	"github.com/anvik/docsage/pkg/llm"
	"github.com/anvik/docsage/pkg/loader"
	"github.com/anvik/docsage/pkg/orchestrator"
	"github.com/anvik/docsage/pkg/retriever"
	"github.com/anvik/docsage/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the wire envelope. Client-to-server types: ingest, ask,
// summarize, challenge, evaluate, sessions. Server-to-client types mirror
// them, plus "status" for progress and "error" for failures.
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Content   string      `json:"content,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type evaluateRequest struct {
	Item   models.ChallengeItem `json:"item"`
	Answer string               `json:"answer"`
}

type answerPayload struct {
	Grounded      bool     `json:"grounded"`
	Answer        string   `json:"answer"`
	Justification string   `json:"justification,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

type WSServer struct {
	orch   *orchestrator.Orchestrator
	store  types.VectorStore
	logger *zap.Logger
}

func NewWSServer(cfg *config.Config, logger *zap.Logger) (*WSServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	orch, st, err := BuildPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &WSServer{
		orch:   orch,
		store:  st,
		logger: logger,
	}, nil
}

// BuildPipeline wires the full component stack from configuration. The store
// backend is selected here; everything downstream only sees the interface.
func BuildPipeline(cfg *config.Config, logger *zap.Logger) (*orchestrator.Orchestrator, types.VectorStore, error) {
	emb, err := embedder.NewWithConfig(embedder.EmbedderConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		BatchSize:  cfg.Embedding.BatchSize,
		RateLimit:  cfg.Embedding.RateLimit,
		MaxRetries: cfg.Embedding.MaxRetries,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	gen, err := llm.NewWithConfig(llm.GeneratorConfig{
		Provider:    cfg.Generation.Provider,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	var st types.VectorStore
	switch cfg.Store.Backend {
	case "pgvector":
		st, err = store.NewPgVectorStore(store.PgVectorConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
		}, logger)
	default:
		st, err = store.NewChromemStore(store.ChromemConfig{Path: cfg.Store.Path}, logger)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	ret := retriever.NewWithConfig(retriever.RetrieverConfig{
		MinScore: float32(cfg.Retrieval.MinScore),
	}, emb, st, logger)

	overlap := 0
	if cfg.Chunker.Overlap != nil {
		overlap = *cfg.Chunker.Overlap
	}
	ch := chunker.NewWithConfig(chunker.ChunkerConfig{
		MaxSize: cfg.Chunker.MaxSize,
		Overlap: overlap,
	})

	orch := orchestrator.NewWithConfig(orchestrator.OrchestratorConfig{
		TopK:             cfg.Retrieval.TopK,
		SummaryGroupSize: cfg.Summary.GroupSize,
		SummaryMaxWords:  cfg.Summary.MaxWords,
	}, ch, emb, ret, st, gen, logger)

	return orch, st, nil
}

func (s *WSServer) Close() error {
	return s.store.Close()
}

// ListenAndServe blocks, serving the websocket endpoint and a health check.
func (s *WSServer) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.logger.Info("websocket server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func (s *WSServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendError(conn, fmt.Sprintf("malformed message: %v", err))
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case "ingest":
		s.handleIngest(ctx, conn, msg)
	case "ask":
		s.handleAsk(ctx, conn, msg)
	case "summarize":
		s.handleSummarize(ctx, conn, msg)
	case "challenge":
		s.handleChallenge(ctx, conn, msg)
	case "evaluate":
		s.handleEvaluate(ctx, conn, msg)
	case "sessions":
		s.handleSessions(ctx, conn)
	default:
		s.sendError(conn, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (s *WSServer) handleIngest(ctx context.Context, conn *websocket.Conn, msg Message) {
	doc := loader.FromText(msg.SessionID, msg.Content)
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = doc.SessionID
	}

	s.send(conn, Message{Type: "status", Content: "Indexing document..."})

	count, err := s.orch.Ingest(ctx, sessionID, msg.Content)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("ingest failed: %v", err))
		return
	}

	s.send(conn, Message{
		Type:      "ingest",
		SessionID: sessionID,
		Content:   fmt.Sprintf("Indexed %d chunks", count),
		Data:      map[string]int{"chunks": count},
	})
}

func (s *WSServer) handleAsk(ctx context.Context, conn *websocket.Conn, msg Message) {
	answer, err := s.orch.Ask(ctx, msg.SessionID, msg.Content)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("ask failed: %v", err))
		return
	}

	sources := make([]string, len(answer.Supporting))
	for i, chunk := range answer.Supporting {
		sources[i] = chunk.Text
	}

	s.send(conn, Message{
		Type:      "ask",
		SessionID: msg.SessionID,
		Content:   answer.Text,
		Data: answerPayload{
			Grounded:      answer.Grounded,
			Answer:        answer.Text,
			Justification: answer.Justification,
			Sources:       sources,
		},
	})
}

func (s *WSServer) handleSummarize(ctx context.Context, conn *websocket.Conn, msg Message) {
	summary, err := s.orch.Summarize(ctx, msg.SessionID)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("summarize failed: %v", err))
		return
	}

	s.send(conn, Message{Type: "summarize", SessionID: msg.SessionID, Content: summary})
}

func (s *WSServer) handleChallenge(ctx context.Context, conn *websocket.Conn, msg Message) {
	n := 3
	if trimmed := strings.TrimSpace(msg.Content); trimmed != "" {
		fmt.Sscanf(trimmed, "%d", &n)
	}

	items, err := s.orch.GenerateQuestions(ctx, msg.SessionID, n)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("challenge failed: %v", err))
		return
	}

	s.send(conn, Message{Type: "challenge", SessionID: msg.SessionID, Data: items})
}

func (s *WSServer) handleEvaluate(ctx context.Context, conn *websocket.Conn, msg Message) {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("evaluate failed: %v", err))
		return
	}

	var req evaluateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError(conn, fmt.Sprintf("evaluate payload malformed: %v", err))
		return
	}

	graded, err := s.orch.Evaluate(ctx, req.Item, req.Answer)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("evaluate failed: %v", err))
		return
	}

	s.send(conn, Message{Type: "evaluate", SessionID: msg.SessionID, Data: graded})
}

func (s *WSServer) handleSessions(ctx context.Context, conn *websocket.Conn) {
	sessions, err := s.orch.ListSessions(ctx)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("listing sessions failed: %v", err))
		return
	}

	s.send(conn, Message{Type: "sessions", Data: sessions})
}

func (s *WSServer) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("failed to send message", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (s *WSServer) sendError(conn *websocket.Conn, content string) {
	s.send(conn, Message{Type: "error", Content: content})
}
