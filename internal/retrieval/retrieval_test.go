package retrieval

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// fakeEmbedder maps known substrings to fixed vectors so similarity
// ranking is deterministic.
type fakeEmbedder struct {
	vectors map[string][]float64
	deflt   []float64
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for key, vec := range f.vectors {
		if strings.Contains(text, key) {
			return vec, nil
		}
	}
	return f.deflt, nil
}

type memArtifacts struct {
	byFingerprint map[string][]models.ProfileChunk
	saves         int
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{byFingerprint: make(map[string][]models.ProfileChunk)}
}

func (m *memArtifacts) GetIndexArtifact(fingerprint string) ([]models.ProfileChunk, error) {
	return m.byFingerprint[fingerprint], nil
}

func (m *memArtifacts) SaveIndexArtifact(profileID, fingerprint string, chunks []models.ProfileChunk) error {
	m.saves++
	m.byFingerprint[fingerprint] = chunks
	return nil
}

func fullProfile() models.Profile {
	return models.Profile{
		Name:               "Maria",
		Age:                "78",
		Gender:             "F",
		MainCondition:      "artrite reumatoide",
		HealthConditions:   "ipertensione",
		CommunicationNeeds: "preferisce frasi brevi",
		LivingSituation:    "vive sola, la figlia abita vicino",
		Routine:            "si alza presto e cura l'orto",
		Goals:              "restare autonoma in casa",
	}
}

func TestChunkProfileOnePerPopulatedSection(t *testing.T) {
	chunks := ChunkProfile(fullProfile())
	if len(chunks) != 6 {
		t.Fatalf("chunks = %d, want 6", len(chunks))
	}
	sections := make(map[string]bool)
	for _, c := range chunks {
		sections[c.Section] = true
		if !strings.HasPrefix(c.Text, "Sezione: ") {
			t.Errorf("chunk %s text missing section header: %q", c.ID, c.Text)
		}
	}
	for _, want := range []string{"identity", "health_conditions", "routine", "communication_needs", "living_situation", "goals"} {
		if !sections[want] {
			t.Errorf("missing section %s", want)
		}
	}
}

func TestChunkProfileSkipsEmptySections(t *testing.T) {
	p := models.Profile{Name: "Anna", Routine: "passeggiata al mattino"}
	chunks := ChunkProfile(p)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 (identity, routine)", len(chunks))
	}

	if got := ChunkProfile(models.Profile{}); got != nil {
		t.Errorf("empty profile chunks = %v, want none", got)
	}
}

func TestFingerprintStability(t *testing.T) {
	a, err := Fingerprint(fullProfile())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint(fullProfile())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("identical profiles produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}

	changed := fullProfile()
	changed.Routine = "ora dorme fino a tardi"
	c, err := Fingerprint(changed)
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("changed profile should produce a different fingerprint")
	}
}

func TestIndexReusesUnchangedFingerprint(t *testing.T) {
	embedder := &fakeEmbedder{deflt: []float64{1, 0, 0}}
	artifacts := newMemArtifacts()
	r := NewRetriever(embedder, artifacts, "P_abc12345")
	ctx := context.Background()

	first, err := r.Index(ctx, fullProfile())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	embedCalls := embedder.calls
	if embedCalls != len(first.Chunks) {
		t.Errorf("embed calls = %d, want %d", embedCalls, len(first.Chunks))
	}
	if artifacts.saves != 1 {
		t.Errorf("artifact saves = %d, want 1", artifacts.saves)
	}

	// Same content, no re-embedding.
	second, err := r.Index(ctx, fullProfile())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if embedder.calls != embedCalls {
		t.Errorf("unchanged profile re-embedded: %d extra calls", embedder.calls-embedCalls)
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("fingerprint changed for identical content")
	}

	// Changed content forces a rebuild.
	changed := fullProfile()
	changed.Goals = "camminare fino alla piazza"
	third, err := r.Index(ctx, changed)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if embedder.calls == embedCalls {
		t.Error("changed profile should re-embed")
	}
	if third.Fingerprint == first.Fingerprint {
		t.Error("changed profile should change the fingerprint")
	}
}

func TestIndexLoadsFromArtifactStore(t *testing.T) {
	profile := fullProfile()
	fingerprint, err := Fingerprint(profile)
	if err != nil {
		t.Fatal(err)
	}
	artifacts := newMemArtifacts()
	artifacts.byFingerprint[fingerprint] = []models.ProfileChunk{
		{ID: "routine_2", Section: "routine", Text: "cached", Vector: []float64{0, 1, 0}},
	}

	embedder := &fakeEmbedder{err: errors.New("must not embed")}
	r := NewRetriever(embedder, artifacts, "P_abc12345")

	idx, err := r.Index(context.Background(), profile)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times despite cached artifact", embedder.calls)
	}
	if len(idx.Chunks) != 1 || idx.Chunks[0].Text != "cached" {
		t.Errorf("unexpected chunks: %+v", idx.Chunks)
	}
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float64{
			"orto":    {1, 0, 0},
			"artrite": {0, 1, 0},
			"sola":    {0, 0, 1},
			"query":   {0.9, 0.1, 0},
		},
		deflt: []float64{0.1, 0.1, 0.1},
	}
	r := NewRetriever(embedder, nil, "P_abc12345")

	idx, err := r.Index(context.Background(), fullProfile())
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), idx, "query sul giardino", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("retrieved %d chunks, want 2", len(got))
	}
	if got[0].Section != "routine" {
		t.Errorf("top chunk section = %s, want routine", got[0].Section)
	}
}

func TestRetrieveDefaults(t *testing.T) {
	embedder := &fakeEmbedder{deflt: []float64{1, 0, 0}}
	r := NewRetriever(embedder, nil, "P_abc12345")

	idx, err := r.Index(context.Background(), fullProfile())
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), idx, "qualsiasi", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != DefaultK {
		t.Errorf("k<=0 retrieved %d chunks, want DefaultK %d", len(got), DefaultK)
	}

	// Nil or empty index degrades to no context.
	if got, err := r.Retrieve(context.Background(), nil, "x", 3); err != nil || got != nil {
		t.Errorf("nil index: got %v, %v", got, err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
	chunks := []models.ProfileChunk{
		{Section: "routine", Text: "cura l'orto"},
		{Section: "goals", Text: "restare autonoma"},
	}
	got := FormatContext(chunks)
	if !strings.Contains(got, "- routine:") || !strings.Contains(got, "restare autonoma") {
		t.Errorf("FormatContext() = %q", got)
	}
}
