package retrieval

import (
	"context"

	"github.com/mltutor/backend/internal/models"
)

// Retriever is the single retrieval contract: callers hand over a query and
// get back deduplicated chunks. Implementations decide how many underlying
// indexes participate.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
}
