package rag

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/akarpov/imagebot/internal/models"
	"gorm.io/gorm"
)

const embedBatchSize = 50

// Embedder turns texts into vectors. One vector per input, same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one query hit. Distance is cosine distance, lower is closer.
type Result struct {
	Source   string
	Seq      int
	Content  string
	Distance float64
}

// SourceInfo summarizes one indexed file.
type SourceInfo struct {
	Source string
	Chunks int
}

// Store indexes the files of a data directory into SQLite.
type Store struct {
	db       *gorm.DB
	embedder Embedder
	dataDir  string
}

// NewStore builds a Store. All arguments are required.
func NewStore(gdb *gorm.DB, embedder Embedder, dataDir string) (*Store, error) {
	if gdb == nil {
		return nil, errors.New("rag: db is required")
	}
	if embedder == nil {
		return nil, errors.New("rag: embedder is required")
	}
	if dataDir == "" {
		return nil, errors.New("rag: data dir is required")
	}
	return &Store{db: gdb, embedder: embedder, dataDir: dataDir}, nil
}

// Index walks the data directory and (re)indexes every supported file.
// Returns chunk counts per source. Unsupported and empty files are skipped.
func (s *Store) Index(ctx context.Context) (map[string]int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("rag: read data dir %s: %w", s.dataDir, err)
	}

	counts := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dataDir, entry.Name())
		text, ok, err := LoadDocument(path)
		if err != nil {
			log.Printf("rag: load %s: %v", path, err)
			continue
		}
		if !ok {
			continue
		}
		chunks := ChunkText(text, chunkSize, chunkOverlap)
		if len(chunks) == 0 {
			continue
		}
		if err := s.indexSource(ctx, entry.Name(), chunks); err != nil {
			return nil, err
		}
		counts[entry.Name()] = len(chunks)
	}
	return counts, nil
}

// Reindex runs Index and returns the total chunk count. Satisfies the
// daemon's scheduler interface.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	counts, err := s.Index(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// indexSource replaces all rows for source with freshly embedded chunks.
func (s *Store) indexSource(ctx context.Context, source string, chunks []string) error {
	vecs := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.embedder.Embed(ctx, chunks[i:end])
		if err != nil {
			return fmt.Errorf("rag: embed %s: %w", source, err)
		}
		vecs = append(vecs, batch...)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("rag: embed %s: got %d vectors for %d chunks", source, len(vecs), len(chunks))
	}

	rows := make([]models.DocumentChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = models.DocumentChunk{
			Source:    source,
			Seq:       i,
			Content:   c,
			Embedding: encodeVector(vecs[i]),
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source = ?", source).Delete(&models.DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("rag: clear %s: %w", source, err)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("rag: store %s: %w", source, err)
		}
		return nil
	})
}

// Sources lists indexed files with their chunk counts.
func (s *Store) Sources() ([]SourceInfo, error) {
	var infos []SourceInfo
	err := s.db.Model(&models.DocumentChunk{}).
		Select("source as source, count(*) as chunks").
		Group("source").
		Order("source").
		Scan(&infos).Error
	if err != nil {
		return nil, fmt.Errorf("rag: list sources: %w", err)
	}
	return infos, nil
}

// Chunks returns the stored chunks for one source in order.
func (s *Store) Chunks(source string) ([]models.DocumentChunk, error) {
	var rows []models.DocumentChunk
	err := s.db.Where("source = ?", source).Order("seq asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rag: load chunks of %s: %w", source, err)
	}
	return rows, nil
}

// DeleteSource drops the index rows for source and removes the file from
// the data directory. Source must be a bare file name; anything that
// resolves outside the data directory is rejected.
func (s *Store) DeleteSource(source string) (int, error) {
	if source == "" || source != filepath.Base(source) {
		return 0, fmt.Errorf("rag: invalid source name %q", source)
	}

	res := s.db.Where("source = ?", source).Delete(&models.DocumentChunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("rag: delete %s: %w", source, res.Error)
	}

	path := filepath.Join(s.dataDir, source)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return int(res.RowsAffected), fmt.Errorf("rag: remove %s: %w", path, err)
	}
	return int(res.RowsAffected), nil
}

// Query embeds the text and returns the topN nearest chunks.
func (s *Store) Query(ctx context.Context, text string, topN int) ([]Result, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embed query: got %d vectors", len(vecs))
	}
	query := vecs[0]

	var rows []models.DocumentChunk
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("rag: load index: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Source:   row.Source,
			Seq:      row.Seq,
			Content:  row.Content,
			Distance: cosineDistance(query, decodeVector(row.Embedding)),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

// cosineDistance is 1 minus cosine similarity. Mismatched or zero vectors
// land at the far end of the ordering.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
