package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

// Dense is the embedding-backed vector index. Each knowledge-base version
// gets its own collection.
type Dense struct {
	db            *chromem.DB
	embed         chromem.EmbeddingFunc
	batchSize     int
	maxChunkChars int
}

func NewDense(dir string, embed chromem.EmbeddingFunc, batchSize, maxChunkChars int) (*Dense, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return &Dense{db: db, embed: embed, batchSize: batchSize, maxChunkChars: maxChunkChars}, nil
}

// Upsert indexes content chunks into the named collection in fixed-size
// batches. Committed batches survive a mid-stream failure. Returns the
// number of chunks indexed.
func (d *Dense) Upsert(ctx context.Context, collection string, chunks []models.Chunk) (int, error) {
	col, err := d.db.GetOrCreateCollection(collection, nil, d.embed)
	if err != nil {
		return 0, fmt.Errorf("collection %s: %w", collection, err)
	}

	var docs []chromem.Document
	for _, c := range chunks {
		if c.IsSpecialPage {
			continue
		}
		content := c.Content
		if len(content) > d.maxChunkChars {
			cut := d.maxChunkChars
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "..."
			c.Truncated = true
		}
		docs = append(docs, chromem.Document{
			ID:       uuid.NewString(),
			Content:  content,
			Metadata: c.Metadata(),
		})
	}

	indexed := 0
	for start := 0; start < len(docs); start += d.batchSize {
		end := start + d.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := col.AddDocuments(ctx, docs[start:end], runtime.NumCPU()); err != nil {
			return indexed, fmt.Errorf("index batch %d-%d: %w", start, end, err)
		}
		indexed = end
		log.Debug().Str("collection", collection).Int("indexed", indexed).Int("total", len(docs)).Msg("batch indexed")
	}

	return indexed, nil
}

// Search runs a similarity query and maps results back into chunks.
func (d *Dense) Search(ctx context.Context, collection, query string, k int) ([]models.Chunk, error) {
	col, err := d.db.GetOrCreateCollection(collection, nil, d.embed)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", collection, err)
	}

	n := k
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryText: query,
		NResults:  n,
	})
	if err != nil {
		return nil, fmt.Errorf("dense query: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, chunkFromResult(r))
	}
	return chunks, nil
}

// DeleteSource removes every document of one source from the collection, so
// a re-uploaded document replaces its old vectors instead of piling on.
func (d *Dense) DeleteSource(ctx context.Context, collection, source string) error {
	col, err := d.db.GetOrCreateCollection(collection, nil, d.embed)
	if err != nil {
		return fmt.Errorf("collection %s: %w", collection, err)
	}
	if col.Count() == 0 {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("delete source %s: %w", source, err)
	}
	return nil
}

// Drop removes a collection and its documents.
func (d *Dense) Drop(collection string) error {
	return d.db.DeleteCollection(collection)
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata["page"])
	return models.Chunk{
		Content:       r.Content,
		Source:        r.Metadata["source"],
		Page:          page,
		PageType:      models.PageType(r.Metadata["page_type"]),
		IsSpecialPage: r.Metadata["special"] == "true",
		Truncated:     r.Metadata["truncated"] == "true",
		ChapterID:     r.Metadata["chapter_id"],
	}
}
