package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/internal/types"
)

var _ types.VectorStore = (*PgVectorStore)(nil)

type PgVectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PgVectorStore is the Postgres/pgvector backend. All sessions share one
// chunk table partitioned logically by session_id; a companion sessions
// table records which collections exist, which keeps "created but empty"
// distinguishable from "never created".
type PgVectorStore struct {
	config PgVectorConfig
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgVectorStore(config PgVectorConfig, logger *zap.Logger) (*PgVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PgVectorStore{
		config: config,
		pool:   pool,
		logger: logger,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PgVectorStore) initialize() error {
	ctx := context.Background()

	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createSessions := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_sessions (
			session_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createSessions); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createSessionIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id, chunk_index)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createSessionIndex); err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	return nil
}

func (vs *PgVectorStore) CreateOrOpen(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s_sessions (session_id) VALUES ($1)
		ON CONFLICT (session_id) DO NOTHING`,
		vs.config.TableName)

	if _, err := vs.pool.Exec(ctx, stmt, sessionID); err != nil {
		return fmt.Errorf("failed to open session %s: %w", sessionID, err)
	}
	return nil
}

func (vs *PgVectorStore) Upsert(ctx context.Context, sessionID string, chunks []models.Chunk) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrMissingEmbedding, chunk.Index)
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sessionStmt := fmt.Sprintf(`
		INSERT INTO %s_sessions (session_id) VALUES ($1)
		ON CONFLICT (session_id) DO NOTHING`,
		vs.config.TableName)

	if _, err := tx.Exec(ctx, sessionStmt, sessionID); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for _, chunk := range chunks {
		_, err = tx.Exec(ctx, stmt,
			ChunkID(sessionID, chunk.Index),
			sessionID,
			chunk.Index,
			sanitizeUTF8(chunk.Text),
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	vs.logger.Debug("upserted chunks",
		zap.String("session_id", sessionID),
		zap.Int("count", len(chunks)),
	)

	return nil
}

func (vs *PgVectorStore) Query(ctx context.Context, sessionID string, embedding []float32, k int) ([]models.Match, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	if err := vs.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	// Cosine distance, so similarity = 1 - distance
	query := fmt.Sprintf(`
		SELECT id, chunk_index, content, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE session_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), sessionID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	matches := []models.Match{}
	for rows.Next() {
		var m models.Match
		m.Chunk.SessionID = sessionID
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Index, &m.Chunk.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func (vs *PgVectorStore) Chunks(ctx context.Context, sessionID string) ([]models.Chunk, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	if err := vs.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, chunk_index, content
		FROM %s
		WHERE session_id = $1
		ORDER BY chunk_index`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.Chunk{}
	for rows.Next() {
		chunk := models.Chunk{SessionID: sessionID}
		if err := rows.Scan(&chunk.ID, &chunk.Index, &chunk.Text); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

func (vs *PgVectorStore) ListSessions(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT session_id FROM %s_sessions ORDER BY session_id`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sessions = append(sessions, id)
	}

	return sessions, rows.Err()
}

func (vs *PgVectorStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteChunks := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, vs.config.TableName)
	if _, err := tx.Exec(ctx, deleteChunks, sessionID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	deleteSession := fmt.Sprintf(`DELETE FROM %s_sessions WHERE session_id = $1`, vs.config.TableName)
	if _, err := tx.Exec(ctx, deleteSession, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return tx.Commit(ctx)
}

func (vs *PgVectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}

func (vs *PgVectorStore) requireSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`SELECT 1 FROM %s_sessions WHERE session_id = $1`, vs.config.TableName)

	var one int
	err := vs.pool.QueryRow(ctx, query, sessionID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, sessionID)
		}
		return fmt.Errorf("failed to check session: %w", err)
	}
	return nil
}

// sanitizeUTF8 drops invalid byte sequences Postgres would reject.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
