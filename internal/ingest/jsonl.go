// Package ingest streams JSONL datasets into a collection through the
// index pipeline.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nordlys-labs/qfrm/internal/domain/batch"
	"github.com/nordlys-labs/qfrm/internal/domain/document"
)

// DefaultBatchSize is the flush threshold when none is configured.
const DefaultBatchSize = 64

// maxLineSize bounds a single JSONL record (1MB).
const maxLineSize = 1 << 20

// Indexer is the consumer interface into the index pipeline (ISP).
type Indexer interface {
	IndexBatch(ctx context.Context, collection string, docs []document.Document) ([]batch.Result, error)
}

// Stats summarizes one ingest run.
type Stats struct {
	Read    int // records read from the stream
	Indexed int // documents persisted
	Skipped int // records without usable content or id
	Failed  int // documents rejected by the pipeline
}

// Loader reads one JSON object per line and indexes it as a document.
//
// The ContentField string value becomes the document content; the "id"
// field (or a generated UUID) becomes the identifier; remaining scalar
// fields land in tags (strings, bools) and numerics (numbers). Nested
// values are dropped.
type Loader struct {
	indexer      Indexer
	contentField string
	batchSize    int
	logger       *zap.Logger
}

// Config holds loader settings.
type Config struct {
	// ContentField names the JSON field holding the embeddable text.
	// Default "description".
	ContentField string
	// BatchSize is the number of documents per IndexBatch call.
	BatchSize int
	Logger    *zap.Logger
}

// NewLoader creates a JSONL loader.
func NewLoader(indexer Indexer, cfg Config) *Loader {
	if cfg.ContentField == "" {
		cfg.ContentField = "description"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Loader{
		indexer:      indexer,
		contentField: cfg.ContentField,
		batchSize:    cfg.BatchSize,
		logger:       cfg.Logger,
	}
}

// Load streams r into the collection. Records that cannot become documents
// are skipped and logged; pipeline rejections are counted per item. The
// first transport-level failure aborts the run with partial stats.
func (l *Loader) Load(ctx context.Context, collection string, r io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	pending := make([]document.Document, 0, l.batchSize)
	line := 0

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		stats.Read++

		doc, ok := l.parseRecord(raw, line)
		if !ok {
			stats.Skipped++
			continue
		}

		pending = append(pending, doc)
		if len(pending) >= l.batchSize {
			if err := l.flush(ctx, collection, pending, &stats); err != nil {
				return stats, err
			}
			// Fresh slice: the indexer may still hold the flushed batch.
			pending = make([]document.Document, 0, l.batchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input at line %d: %w", line, err)
	}

	if len(pending) > 0 {
		if err := l.flush(ctx, collection, pending, &stats); err != nil {
			return stats, err
		}
	}

	l.logger.Info("ingest finished",
		zap.String("collection", collection),
		zap.Int("read", stats.Read),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))

	return stats, nil
}

func (l *Loader) parseRecord(raw []byte, line int) (document.Document, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		l.logger.Warn("skipping malformed record",
			zap.Int("line", line), zap.Error(err))
		return document.Document{}, false
	}

	content, _ := fields[l.contentField].(string)
	if content == "" {
		l.logger.Warn("skipping record without content",
			zap.Int("line", line), zap.String("field", l.contentField))
		return document.Document{}, false
	}

	id := recordID(fields)
	tags := make(map[string]string)
	numerics := make(map[string]float64)
	for k, v := range fields {
		if k == l.contentField || k == "id" {
			continue
		}
		switch val := v.(type) {
		case string:
			tags[k] = val
		case bool:
			tags[k] = fmt.Sprintf("%t", val)
		case float64:
			numerics[k] = val
		}
	}

	doc, err := document.New(id, content, tags, numerics)
	if err != nil {
		l.logger.Warn("skipping invalid record",
			zap.Int("line", line), zap.String("id", id), zap.Error(err))
		return document.Document{}, false
	}
	return doc, true
}

func (l *Loader) flush(
	ctx context.Context, collection string, docs []document.Document, stats *Stats,
) error {
	results, err := l.indexer.IndexBatch(ctx, collection, docs)
	if err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	for _, r := range results {
		if r.Status() == batch.StatusOK {
			stats.Indexed++
		} else {
			stats.Failed++
			l.logger.Warn("document rejected",
				zap.String("id", r.ID()), zap.Error(r.Err()))
		}
	}
	return nil
}

// recordID returns the record's own id when usable, otherwise a random UUID.
func recordID(fields map[string]any) string {
	switch v := fields["id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return uuid.NewString()
}
