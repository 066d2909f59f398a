package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/akarpov/imagebot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeEmbedder maps known texts to fixed vectors. Unknown texts embed to
// a constant far-away vector.
type fakeEmbedder struct {
	vecs  map[string][]float32
	err   error
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vecs[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func testStore(t *testing.T, embedder Embedder, dataDir string) *Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.DocumentChunk{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s, err := NewStore(gdb, embedder, dataDir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func writeDataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexAndQuery(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "ships.txt", "the harbour holds twelve ships")
	writeDataFile(t, dir, "trains.md", "the depot holds nine trains")
	writeDataFile(t, dir, "skipped.bin", "binary payload")

	emb := &fakeEmbedder{vecs: map[string][]float32{
		"the harbour holds twelve ships": {1, 0, 0},
		"the depot holds nine trains":    {0, 1, 0},
		"how many ships?":                {0.9, 0.1, 0},
	}}
	s := testStore(t, emb, dir)

	counts, err := s.Index(context.Background())
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(counts) != 2 || counts["ships.txt"] != 1 || counts["trains.md"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	results, err := s.Query(context.Background(), "how many ships?", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Source != "ships.txt" {
		t.Errorf("nearest source = %q, want ships.txt", results[0].Source)
	}
}

func TestIndexReplacesExistingRows(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "note.txt", "version one")

	emb := &fakeEmbedder{vecs: map[string][]float32{}}
	s := testStore(t, emb, dir)

	if _, err := s.Index(context.Background()); err != nil {
		t.Fatalf("first Index: %v", err)
	}
	writeDataFile(t, dir, "note.txt", "version two")
	if _, err := s.Index(context.Background()); err != nil {
		t.Fatalf("second Index: %v", err)
	}

	chunks, err := s.Chunks("note.txt")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1 (stale rows kept)", len(chunks))
	}
	if chunks[0].Content != "version two" {
		t.Errorf("content = %q, want the reindexed version", chunks[0].Content)
	}
}

func TestIndexBatchesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	// One file long enough to produce well over one embed batch.
	var sb []byte
	for i := 0; i < 10000; i++ {
		sb = append(sb, "word "...)
	}
	writeDataFile(t, dir, "long.txt", string(sb))

	emb := &fakeEmbedder{vecs: map[string][]float32{}}
	s := testStore(t, emb, dir)

	counts, err := s.Index(context.Background())
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if counts["long.txt"] <= embedBatchSize {
		t.Fatalf("chunking produced only %d chunks", counts["long.txt"])
	}
	for _, call := range emb.calls {
		if len(call) > embedBatchSize {
			t.Errorf("embed call with %d texts, want <= %d", len(call), embedBatchSize)
		}
	}
	if len(emb.calls) < 2 {
		t.Errorf("len(calls) = %d, want batched calls", len(emb.calls))
	}
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "a.txt", "alpha")
	writeDataFile(t, dir, "b.txt", "beta")

	s := testStore(t, &fakeEmbedder{vecs: map[string][]float32{}}, dir)
	if _, err := s.Index(context.Background()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	infos, err := s.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(infos) != 2 || infos[0].Source != "a.txt" || infos[1].Source != "b.txt" {
		t.Errorf("infos = %v", infos)
	}
	if infos[0].Chunks != 1 {
		t.Errorf("a.txt chunks = %d, want 1", infos[0].Chunks)
	}
}

func TestDeleteSource(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "gone.txt", "to be removed")

	s := testStore(t, &fakeEmbedder{vecs: map[string][]float32{}}, dir)
	if _, err := s.Index(context.Background()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	n, err := s.DeleteSource("gone.txt")
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
}

func TestDeleteSourceRejectsPathTraversal(t *testing.T) {
	s := testStore(t, &fakeEmbedder{vecs: map[string][]float32{}}, t.TempDir())
	for _, source := range []string{"../secrets.txt", "sub/dir.txt", ""} {
		if _, err := s.DeleteSource(source); err == nil {
			t.Errorf("DeleteSource(%q) succeeded, want error", source)
		}
	}
}

func TestReindexTotals(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "a.txt", "alpha")
	writeDataFile(t, dir, "b.txt", "beta")

	s := testStore(t, &fakeEmbedder{vecs: map[string][]float32{}}, dir)
	total, err := s.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestQueryEmbedError(t *testing.T) {
	s := testStore(t, &fakeEmbedder{err: errors.New("api down")}, t.TempDir())
	if _, err := s.Query(context.Background(), "anything", 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float32{1, 0}, []float32{1, 0}); d > 1e-6 {
		t.Errorf("identical vectors: distance = %f, want 0", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); d < 0.99 || d > 1.01 {
		t.Errorf("orthogonal vectors: distance = %f, want 1", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{1}); d != 2 {
		t.Errorf("mismatched lengths: distance = %f, want 2", d)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75}
	got := decodeVector(encodeVector(v))
	if len(got) != 3 || got[0] != 0.25 || got[1] != -1.5 || got[2] != 3.75 {
		t.Errorf("round trip = %v", got)
	}
}
