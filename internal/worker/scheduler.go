package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/scribesync/api/internal/model"
	"github.com/scribesync/api/internal/service"
)

// TaskTypePipelineTick is the periodic task that drives the whole pipeline
// when the built-in scheduler is enabled.
const TaskTypePipelineTick = "pipeline:tick"

// maxDistillCycles bounds how many transcripts one tick will distill.
const maxDistillCycles = 5

// PipelineWorker runs one full pipeline pass per tick: scan the inbox, poll
// every in-flight OCR job, then distill finished transcripts. A Redis lease
// keeps overlapping ticks from running the pass twice.
type PipelineWorker struct {
	intake   *service.IntakeService
	ocr      *service.OCRService
	distill  *service.DistillService
	redis    *redis.Client
	leaseTTL time.Duration
}

func NewPipelineWorker(intake *service.IntakeService, ocr *service.OCRService, distill *service.DistillService, redisClient *redis.Client, leaseTTL time.Duration) *PipelineWorker {
	return &PipelineWorker{
		intake:   intake,
		ocr:      ocr,
		distill:  distill,
		redis:    redisClient,
		leaseTTL: leaseTTL,
	}
}

// ProcessTick handles one scheduled pipeline pass
func (w *PipelineWorker) ProcessTick(ctx context.Context, t *asynq.Task) error {
	acquired, err := w.redis.SetNX(ctx, "pipeline:tick:lease", time.Now().UTC().Format(time.RFC3339), w.leaseTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire tick lease: %w", err)
	}
	if !acquired {
		log.Printf("[Scheduler] previous tick still holds the lease, skipping")
		return nil
	}
	defer w.redis.Del(context.WithoutCancel(ctx), "pipeline:tick:lease")

	w.runIntake(ctx)
	w.pollJobs(ctx)
	w.runDistillation(ctx)
	return nil
}

func (w *PipelineWorker) runIntake(ctx context.Context) {
	result, err := w.intake.ProcessInbox(ctx)
	if err != nil {
		log.Printf("[Scheduler] intake failed: %v", err)
		return
	}
	if result.Status != model.StatusNoEmail {
		log.Printf("[Scheduler] intake processed %d file(s)", len(result.FilesProcessed))
	}
}

func (w *PipelineWorker) pollJobs(ctx context.Context) {
	jobs, err := w.ocr.ListJobs(ctx)
	if err != nil {
		log.Printf("[Scheduler] failed to list jobs: %v", err)
		return
	}

	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		if _, err := w.ocr.Poll(ctx, job.ID); err != nil {
			log.Printf("[Scheduler] poll of job %s failed: %v", job.ID, err)
		}
	}
}

// runDistillation drives the three stages back to back. The HTTP endpoints
// spread the same stages across scheduler calls; in-process there is no
// reason to wait between them.
func (w *PipelineWorker) runDistillation(ctx context.Context) {
	if !w.distill.IsConfigured() {
		return
	}

	for i := 0; i < maxDistillCycles; i++ {
		queued, err := w.distill.Queue(ctx)
		if err != nil {
			log.Printf("[Scheduler] distill queue failed: %v", err)
			return
		}
		if queued.Status == model.StatusNoFiles {
			return
		}

		processed, err := w.distill.Process(ctx, queued.TempID)
		if err != nil {
			log.Printf("[Scheduler] distill process of %q failed: %v", queued.OriginalFile, err)
			return
		}

		if _, err := w.distill.Save(ctx, processed.ResultID, queued.OriginalID); err != nil {
			log.Printf("[Scheduler] distill save of %q failed: %v", queued.OriginalFile, err)
			return
		}
	}
}
