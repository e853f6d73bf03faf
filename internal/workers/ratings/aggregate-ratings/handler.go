package aggregateratings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/dishlist/cache"
	"dishlist-workers/internal/dishlist/ratings"
	"dishlist-workers/internal/models"
)

const (
	TaskType = "aggregate-ratings"
)

var (
	ErrInvalidInput         = errors.New("INVALID_INPUT")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
)

type Store interface {
	RatingsForRestaurants(ctx context.Context, ids []string) (map[string][]models.Rating, error)
}

type Handler struct {
	config       *Config
	store        Store
	summaries    *cache.SummaryCache
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, st Store, summaries *cache.SummaryCache, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        st,
		summaries:    summaries,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, apperrors.NewInvalidInputError("parse input", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, toStandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	ids := distinct(input.RestaurantIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: restaurantIds is required", ErrInvalidInput)
	}
	if h.config.MaxIDs > 0 && len(ids) > h.config.MaxIDs {
		return nil, fmt.Errorf("%w: at most %d restaurantIds", ErrInvalidInput, h.config.MaxIDs)
	}

	found, missed, err := h.summaries.Get(ctx, ids)
	if err != nil {
		h.logger.Warn("rating summary cache read failed", map[string]interface{}{"error": err})
	}

	out := &Output{CacheHits: len(found), CacheMisses: len(missed)}

	if len(missed) > 0 {
		byID, err := h.store.RatingsForRestaurants(ctx, missed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
		}

		fresh := make([]models.RatingSummary, 0, len(missed))
		for _, id := range missed {
			s := ratings.Aggregate(byID[id])
			summary := models.RatingSummary{RestaurantID: id, AverageRating: s.AverageRating, RatingCount: s.Count}
			found[id] = summary
			fresh = append(fresh, summary)
		}
		if err := h.summaries.Set(ctx, fresh); err != nil {
			h.logger.Warn("rating summary cache write failed", map[string]interface{}{"error": err})
		}
	}

	out.Summaries = make([]models.RatingSummary, 0, len(ids))
	for _, id := range ids {
		out.Summaries = append(out.Summaries, found[id])
	}
	return out, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toStandardError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error(), err)
	case errors.Is(err, ErrQueryExecutionFailed):
		return apperrors.NewQueryExecutionFailedError(TaskType, err)
	}
	return err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
