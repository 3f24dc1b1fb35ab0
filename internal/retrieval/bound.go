package retrieval

import (
	"context"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// Bound ties a retriever to a built index for session use; it satisfies
// the controller's ContextRetriever interface.
type Bound struct {
	retriever *Retriever
	index     *Index
}

// NewBound wraps a retriever and its session index.
func NewBound(retriever *Retriever, index *Index) *Bound {
	return &Bound{retriever: retriever, index: index}
}

// Retrieve ranks the session's profile chunks against the query.
func (b *Bound) Retrieve(ctx context.Context, query string, k int) ([]models.ProfileChunk, error) {
	return b.retriever.Retrieve(ctx, b.index, query, k)
}
