package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// DefaultK bounds the number of retrieved chunks to keep downstream
// prompts small.
const DefaultK = 3

// Embedder turns text into a fixed-length vector. Deterministic for
// identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ArtifactStore persists index artifacts keyed by content fingerprint.
// A missing artifact is reported as (nil, nil).
type ArtifactStore interface {
	GetIndexArtifact(fingerprint string) ([]models.ProfileChunk, error)
	SaveIndexArtifact(profileID, fingerprint string, chunks []models.ProfileChunk) error
}

// Index is a handle over the embedded chunks of one profile at one
// content fingerprint.
type Index struct {
	ProfileID   string
	Fingerprint string
	Chunks      []models.ProfileChunk
}

// Retriever builds and queries profile indices. An instance is owned by
// a single session; reindexing the same profile concurrently is not
// supported.
type Retriever struct {
	embedder  Embedder
	artifacts ArtifactStore
	profileID string

	// last successfully built index, reused when the fingerprint matches
	last *Index
}

// NewRetriever creates a retriever for one profile. The artifact store is
// optional; without it indices are rebuilt per process.
func NewRetriever(embedder Embedder, artifacts ArtifactStore, profileID string) *Retriever {
	return &Retriever{
		embedder:  embedder,
		artifacts: artifacts,
		profileID: profileID,
	}
}

// Index builds (or reuses) the index for the profile. It is idempotent
// and content-addressed: an unchanged fingerprint skips all embedding
// work, first via the in-process handle and then via the artifact store.
func (r *Retriever) Index(ctx context.Context, profile models.Profile) (*Index, error) {
	fingerprint, err := Fingerprint(profile)
	if err != nil {
		return nil, err
	}

	if r.last != nil && r.last.Fingerprint == fingerprint {
		slog.Debug("retrieval.Index: fingerprint unchanged, reusing in-process index", "profileID", r.profileID)
		return r.last, nil
	}

	if r.artifacts != nil {
		cached, err := r.artifacts.GetIndexArtifact(fingerprint)
		if err != nil {
			slog.Warn("retrieval.Index: artifact lookup failed, rebuilding", "error", err, "profileID", r.profileID)
		} else if cached != nil {
			slog.Debug("retrieval.Index: loaded index artifact", "profileID", r.profileID, "chunks", len(cached))
			r.last = &Index{ProfileID: r.profileID, Fingerprint: fingerprint, Chunks: cached}
			return r.last, nil
		}
	}

	chunks := ChunkProfile(profile)
	for i := range chunks {
		vector, err := r.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %s: %w", chunks[i].ID, err)
		}
		chunks[i].Vector = vector
	}
	slog.Info("retrieval.Index: built index", "profileID", r.profileID, "chunks", len(chunks))

	if r.artifacts != nil {
		if err := r.artifacts.SaveIndexArtifact(r.profileID, fingerprint, chunks); err != nil {
			slog.Warn("retrieval.Index: failed to persist index artifact", "error", err, "profileID", r.profileID)
		}
	}

	r.last = &Index{ProfileID: r.profileID, Fingerprint: fingerprint, Chunks: chunks}
	return r.last, nil
}

// Retrieve embeds the query and returns the top-k chunks by cosine
// similarity. Ties break by original chunk order (stable sort). k <= 0
// falls back to DefaultK.
func (r *Retriever) Retrieve(ctx context.Context, idx *Index, query string, k int) ([]models.ProfileChunk, error) {
	if idx == nil || len(idx.Chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultK
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	type scored struct {
		chunk models.ProfileChunk
		score float64
	}
	ranked := make([]scored, 0, len(idx.Chunks))
	for _, c := range idx.Chunks {
		ranked = append(ranked, scored{chunk: c, score: CosineSimilarity(queryVec, c.Vector)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]models.ProfileChunk, 0, k)
	for _, s := range ranked[:k] {
		out = append(out, s.chunk)
	}
	return out, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero vectors score zero rather than erroring, so one bad
// chunk vector degrades ranking instead of blocking retrieval.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FormatContext renders retrieved chunks into a compact prompt block.
func FormatContext(chunks []models.ProfileChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	out := ""
	for _, c := range chunks {
		if out != "" {
			out += "\n\n"
		}
		out += "- " + c.Section + ":\n" + c.Text
	}
	return out
}
