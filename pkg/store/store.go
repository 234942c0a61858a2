// Package store persists chunk records in one durable collection per
// document session. Two backends are provided: an embedded chromem-go
// database (default, no external service) and pgvector on Postgres.
package store

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrCollectionNotFound is returned on reads against a session id that was
// never created. It is a caller error and is not retried.
var ErrCollectionNotFound = errors.New("session collection not found")

// ErrMissingEmbedding is returned when an upserted chunk carries no vector.
// Ingestion computes all embeddings before writing, so this indicates a bug
// in the caller, not a transient condition.
var ErrMissingEmbedding = errors.New("chunk has no embedding")

// ErrInvalidSessionID is returned for session ids that are empty or contain
// characters the backends cannot use in collection names.
var ErrInvalidSessionID = errors.New("invalid session id")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return nil
}

// ChunkID derives the stable record id for a chunk. Re-ingesting the same
// document with the same chunker parameters produces the same ids, so
// upserts overwrite instead of duplicating.
func ChunkID(sessionID string, index int) string {
	return fmt.Sprintf("%s_%d", sessionID, index)
}

const collectionPrefix = "session-"

func collectionName(sessionID string) string {
	return collectionPrefix + sessionID
}
