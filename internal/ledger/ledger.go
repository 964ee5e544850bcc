// Package ledger records the key sets of failed cluster writes so they can be
// retried selectively later.
package ledger

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/google/uuid"
)

// ErrEntryNotFound is returned when resolving an unknown entry
var ErrEntryNotFound = goerrors.New("ledger entry not found")

// Entry is one failed key set
type Entry struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"request_id"`
	Keys      []string  `json:"keys"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger stores failed key sets until they are resolved
type Ledger interface {
	Record(ctx context.Context, entries ...Entry) error
	// Pending returns unresolved entries, oldest first
	Pending(ctx context.Context, limit int) ([]Entry, error)
	Resolve(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// EntriesFrom builds one entry per failed target of result
func EntriesFrom(requestID string, result *errors.ClusterResult) []Entry {
	if result == nil {
		return nil
	}

	now := time.Now().UTC()
	entries := make([]Entry, 0, len(result.Errors))
	for _, te := range result.Errors {
		entries = append(entries, Entry{
			ID:        uuid.New(),
			RequestID: requestID,
			Keys:      append([]string{}, te.Keys...),
			Kind:      te.Err.Kind().String(),
			Message:   te.Err.Error(),
			Retryable: errors.Retryable(te.Err),
			CreatedAt: now,
		})
	}
	return entries
}
