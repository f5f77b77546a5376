package kb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/index"
	"github.com/mltutor/backend/internal/ingest"
	"github.com/mltutor/backend/internal/models"
)

// Service builds the knowledge base: extract, clean, split, index, register.
// It also maintains the full keyword-index corpus across builds so multiple
// documents stay searchable side by side.
type Service struct {
	pipeline   *ingest.Pipeline
	dense      *index.Dense
	keyword    *index.Keyword
	versions   *VersionStore
	collection string

	mu     sync.Mutex
	corpus []models.Chunk
}

func NewService(pipeline *ingest.Pipeline, dense *index.Dense, keyword *index.Keyword, versions *VersionStore, collection string) *Service {
	return &Service{
		pipeline:   pipeline,
		dense:      dense,
		keyword:    keyword,
		versions:   versions,
		collection: collection,
	}
}

// Build implements Builder. A document that produces zero chunks is a
// terminal failure; individual page failures inside the pipeline are logged
// and skipped.
func (s *Service) Build(ctx context.Context, task *models.BuildTask, report func(progress int, message string)) error {
	report(10, "正在解析PDF文档...")

	chunks, err := s.pipeline.ProcessFile(task.FilePath, task.Source)
	if err != nil {
		return fmt.Errorf("process document: %w", err)
	}
	if len(chunks) == 0 {
		return errors.New("文档处理未生成任何文本块")
	}
	task.ChunkCount = len(chunks)
	report(50, fmt.Sprintf("解析完成，生成%d个文本块", len(chunks)))

	report(60, "正在构建向量索引...")
	if err := s.dense.DeleteSource(ctx, s.collection, task.Source); err != nil {
		// Stale vectors degrade retrieval but do not block the build.
		log.Warn().Err(err).Str("source", task.Source).Msg("failed to purge old vectors")
	}
	indexed, err := s.dense.Upsert(ctx, s.collection, chunks)
	if err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	report(85, "正在重建关键词索引...")
	s.rebuildKeyword(task.Source, chunks)

	report(95, "正在登记知识库版本...")
	version := &models.KBVersion{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Filename:    task.Filename,
		DisplayName: strings.TrimSuffix(task.Filename, filepath.Ext(task.Filename)),
		Collection:  s.collection,
		ChunkCount:  indexed,
	}
	if err := s.versions.Register(version); err != nil {
		return fmt.Errorf("register version: %w", err)
	}
	task.VersionID = version.ID

	return nil
}

// rebuildKeyword swaps this source's chunks into the aggregate corpus and
// rebuilds the sparse index over the whole thing.
func (s *Service) rebuildKeyword(source string, chunks []models.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	corpus := make([]models.Chunk, 0, len(s.corpus)+len(chunks))
	for _, c := range s.corpus {
		if c.Source != source {
			corpus = append(corpus, c)
		}
	}
	corpus = append(corpus, chunks...)
	s.corpus = corpus
	s.keyword.Build(corpus)
}
