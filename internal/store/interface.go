package store

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrUnavailable wraps any failure of the backing store. Retrieval and
// recall treat it as fatal; the pipeline degrades to history-only context.
var ErrUnavailable = errors.New("vector store unavailable")

// GraphDriver abstracts the bolt connection so store logic can be tested
// against a mock.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
