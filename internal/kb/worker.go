package kb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

const defaultQueueSize = 16

// ErrQueueFull is returned when the build queue cannot take another task.
var ErrQueueFull = errors.New("build queue is full, try again later")

// Builder runs one knowledge-base build. It may call report to publish
// intermediate progress, and fills in the task's chunk count and version id
// on success.
type Builder interface {
	Build(ctx context.Context, task *models.BuildTask, report func(progress int, message string)) error
}

// TaskRecorder persists task status transitions.
type TaskRecorder interface {
	Create(task *models.BuildTask) error
	Update(task *models.BuildTask) error
}

// Worker owns the build queue. Exactly one goroutine consumes it, so builds
// never run concurrently; submissions while a build is running queue up and
// are processed in order.
type Worker struct {
	queue   chan *models.BuildTask
	tasks   TaskRecorder
	builder Builder
	wg      sync.WaitGroup
}

func NewWorker(tasks TaskRecorder, builder Builder, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Worker{
		queue:   make(chan *models.BuildTask, queueSize),
		tasks:   tasks,
		builder: builder,
	}
}

// Submit records the task as pending and enqueues it.
func (w *Worker) Submit(task *models.BuildTask) error {
	task.Status = models.TaskPending
	task.Progress = 0
	task.Message = "等待处理"

	if err := w.tasks.Create(task); err != nil {
		return err
	}

	select {
	case w.queue <- task:
		log.Info().Str("task_id", task.ID).Str("source", task.Source).Msg("build task queued")
		return nil
	default:
		task.Status = models.TaskFailed
		task.Error = ErrQueueFull.Error()
		if err := w.tasks.Update(task); err != nil {
			log.Warn().Err(err).Str("task_id", task.ID).Msg("failed to record queue rejection")
		}
		return ErrQueueFull
	}
}

// Start launches the single consumer goroutine. It runs until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-w.queue:
				w.process(ctx, task)
			}
		}
	}()
}

// Wait blocks until the consumer goroutine has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, task *models.BuildTask) {
	started := time.Now()
	task.Status = models.TaskProcessing
	task.StartedAt = &started
	task.Progress = 5
	task.Message = "开始处理文档..."
	w.persist(task)

	report := func(progress int, message string) {
		task.Progress = progress
		task.Message = message
		w.persist(task)
	}

	if err := w.builder.Build(ctx, task, report); err != nil {
		finished := time.Now()
		task.Status = models.TaskFailed
		task.Error = err.Error()
		task.Message = "处理失败: " + err.Error()
		task.FinishedAt = &finished
		w.persist(task)
		log.Error().Err(err).Str("task_id", task.ID).Str("source", task.Source).Msg("build task failed")
		return
	}

	finished := time.Now()
	task.Status = models.TaskCompleted
	task.Progress = 100
	task.Message = "处理完成"
	task.FinishedAt = &finished
	w.persist(task)
	log.Info().
		Str("task_id", task.ID).
		Str("source", task.Source).
		Int("chunks", task.ChunkCount).
		Dur("took", finished.Sub(started)).
		Msg("build task completed")
}

func (w *Worker) persist(task *models.BuildTask) {
	if err := w.tasks.Update(task); err != nil {
		log.Warn().Err(err).Str("task_id", task.ID).Msg("failed to persist task status")
	}
}
