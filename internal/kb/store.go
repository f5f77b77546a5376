package kb

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/mltutor/backend/internal/models"
)

// ── Task Store ──────────────────────────────────────────

// TaskStore keeps build-task records in Postgres with a write-through
// in-memory cache. Reads hit the cache first so status polling during a
// build does not touch the database.
type TaskStore struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]models.BuildTask
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db, cache: make(map[string]models.BuildTask)}
}

func (s *TaskStore) Create(task *models.BuildTask) error {
	err := s.db.QueryRow(
		`INSERT INTO build_tasks (id, filename, source, file_path, status, progress, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		task.ID, task.Filename, task.Source, task.FilePath,
		task.Status, task.Progress, task.Message,
	).Scan(&task.CreatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	s.put(task)
	return nil
}

func (s *TaskStore) Update(task *models.BuildTask) error {
	s.put(task)

	_, err := s.db.Exec(
		`UPDATE build_tasks
		 SET status = $1, progress = $2, message = $3, error = $4,
		     chunk_count = $5, version_id = NULLIF($6, ''),
		     started_at = $7, finished_at = $8
		 WHERE id = $9`,
		task.Status, task.Progress, task.Message, task.Error,
		task.ChunkCount, task.VersionID, task.StartedAt, task.FinishedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

// Get returns the cached record when present, falling back to the durable
// row for tasks from before a restart.
func (s *TaskStore) Get(id string) (*models.BuildTask, error) {
	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	var task models.BuildTask
	var message, errMsg, versionID sql.NullString
	err := s.db.QueryRow(
		`SELECT id, filename, source, file_path, status, progress, message, error,
		        chunk_count, version_id, created_at, started_at, finished_at
		 FROM build_tasks WHERE id = $1`,
		id,
	).Scan(&task.ID, &task.Filename, &task.Source, &task.FilePath,
		&task.Status, &task.Progress, &message, &errMsg,
		&task.ChunkCount, &versionID, &task.CreatedAt, &task.StartedAt, &task.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	task.Message = message.String
	task.Error = errMsg.String
	task.VersionID = versionID.String

	return &task, nil
}

func (s *TaskStore) put(task *models.BuildTask) {
	s.mu.Lock()
	s.cache[task.ID] = *task
	s.mu.Unlock()
}

// ── Version Store ───────────────────────────────────────

// VersionStore records completed knowledge-base builds. Registration is
// last-write-wins per source document: re-uploading a file replaces its
// previous version entry.
type VersionStore struct {
	db *sql.DB
}

func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

func (s *VersionStore) Register(v *models.KBVersion) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("register version: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM kb_versions WHERE filename = $1`,
		v.Filename,
	); err != nil {
		return fmt.Errorf("replace version for %s: %w", v.Filename, err)
	}

	err = tx.QueryRow(
		`INSERT INTO kb_versions (id, task_id, filename, display_name, collection, chunk_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, last_used_at`,
		v.ID, v.TaskID, v.Filename, v.DisplayName, v.Collection, v.ChunkCount,
	).Scan(&v.CreatedAt, &v.LastUsedAt)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("register version: %w", err)
	}
	return nil
}

// List returns all versions, newest first.
func (s *VersionStore) List() ([]models.KBVersion, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, filename, display_name, collection, chunk_count, created_at, last_used_at
		 FROM kb_versions
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.KBVersion
	for rows.Next() {
		var v models.KBVersion
		if err := rows.Scan(&v.ID, &v.TaskID, &v.Filename, &v.DisplayName,
			&v.Collection, &v.ChunkCount, &v.CreatedAt, &v.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func (s *VersionStore) Get(id string) (*models.KBVersion, error) {
	var v models.KBVersion
	err := s.db.QueryRow(
		`SELECT id, task_id, filename, display_name, collection, chunk_count, created_at, last_used_at
		 FROM kb_versions WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.TaskID, &v.Filename, &v.DisplayName,
		&v.Collection, &v.ChunkCount, &v.CreatedAt, &v.LastUsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", id, err)
	}
	return &v, nil
}

func (s *VersionStore) MarkUsed(id string) error {
	_, err := s.db.Exec(
		`UPDATE kb_versions SET last_used_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark version used: %w", err)
	}
	return nil
}
