package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"dishlist-workers/internal/common/config"
	"dishlist-workers/internal/common/metrics"
	"dishlist-workers/internal/common/observability"
)

// Job outcomes as seen by the instrumentation.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeBPMNError = "bpmn_error"
	OutcomePanic     = "panic"
	OutcomeNone      = "none"
)

// HandlerFunc is the signature every worker's Handle method satisfies.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// outcomeRecorder notes which command a handler issued for its job.
type outcomeRecorder struct {
	worker.JobClient
	outcome string
}

func (r *outcomeRecorder) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	r.outcome = OutcomeCompleted
	return r.JobClient.NewCompleteJobCommand()
}

func (r *outcomeRecorder) NewFailJobCommand() commands.FailJobCommandStep1 {
	r.outcome = OutcomeFailed
	return r.JobClient.NewFailJobCommand()
}

func (r *outcomeRecorder) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	r.outcome = OutcomeBPMNError
	return r.JobClient.NewThrowErrorCommand()
}

// Instrument wraps a handler with a span, prometheus job metrics and panic
// recovery. A panicking handler fails the job with no retries left. obs may
// be nil.
func Instrument(taskType string, handler HandlerFunc, obs *observability.Observability, log *zap.Logger) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		ctx := context.Background()
		var span trace.Span
		if obs != nil {
			ctx, span = obs.StartSpan(ctx, taskType, job.Key)
			defer span.End()
		}

		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		rec := &outcomeRecorder{JobClient: client, outcome: OutcomeNone}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panicked",
					zap.String("taskType", taskType),
					zap.Int64("jobKey", job.Key),
					zap.Any("panic", p),
				)
				rec.outcome = OutcomePanic
				failPanickedJob(ctx, client, job, p, log)
			}
			if span != nil {
				span.SetAttributes(attribute.String("job.outcome", rec.outcome))
			}
			record(ctx, obs, taskType, rec.outcome, time.Since(start))
		}()

		handler(rec, job)
	}
}

func record(ctx context.Context, obs *observability.Observability, taskType, outcome string, elapsed time.Duration) {
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
	if outcome == OutcomeCompleted {
		metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	} else {
		metrics.WorkerJobsFailed.WithLabelValues(taskType, outcome).Inc()
	}
	if obs != nil {
		obs.RecordJobProcessed(ctx, taskType, outcome)
		obs.RecordJobDuration(ctx, taskType, elapsed, outcome)
	}
}

func failPanickedJob(ctx context.Context, client worker.JobClient, job entities.Job, p any, log *zap.Logger) {
	cmd := client.NewFailJobCommand()
	if cmd == nil {
		return
	}
	if _, err := cmd.JobKey(job.Key).Retries(0).ErrorMessage(fmt.Sprintf("handler panic: %v", p)).Send(ctx); err != nil {
		log.Error("failed to fail panicked job", zap.Int64("jobKey", job.Key), zap.Error(err))
	}
}

// Start opens a job worker for taskType. Disabled workers return nil.
func Start(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler HandlerFunc, log *zap.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return jw
}
