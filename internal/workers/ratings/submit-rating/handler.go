package submitrating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/dishlist/cache"
	"dishlist-workers/internal/dishlist/ratings"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

const (
	TaskType = "submit-rating"

	MinScore = 0.0
	MaxScore = 10.0
)

var (
	ErrInvalidInput         = errors.New("INVALID_INPUT")
	ErrInvalidScore         = errors.New("INVALID_SCORE")
	ErrRestaurantNotFound   = errors.New("RESTAURANT_NOT_FOUND")
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
)

type Store interface {
	Restaurant(ctx context.Context, id string) (*models.Restaurant, error)
	UpsertUserRating(ctx context.Context, r models.Rating) (models.Rating, error)
	RestaurantRatings(ctx context.Context, restaurantID string) ([]models.Rating, error)
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
		h.errorHandler.HandleJobError(context.Background(), client, job, toStandardError(&input, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.validate(input); err != nil {
		return nil, err
	}

	if _, err := h.store.Restaurant(ctx, input.RestaurantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRestaurantNotFound, input.RestaurantID)
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
	}

	userID := input.UserID
	rating, err := h.store.UpsertUserRating(ctx, models.Rating{
		RestaurantID: input.RestaurantID,
		UserID:       &userID,
		Score:        *input.Score,
		ReviewText:   input.ReviewText,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
	}

	if err := h.summaries.Invalidate(ctx, input.RestaurantID); err != nil {
		h.logger.Warn("rating summary invalidation failed", map[string]interface{}{
			"restaurantId": input.RestaurantID,
			"error":        err,
		})
	}

	all, err := h.store.RestaurantRatings(ctx, input.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
	}
	s := ratings.Aggregate(all)

	h.logger.Info("rating stored", map[string]interface{}{
		"restaurantId": input.RestaurantID,
		"userId":       input.UserID,
		"score":        rating.Score,
		"average":      s.AverageRating,
	})

	return &Output{
		Rating: rating,
		Summary: models.RatingSummary{
			RestaurantID:  input.RestaurantID,
			AverageRating: s.AverageRating,
			RatingCount:   s.Count,
		},
	}, nil
}

func (h *Handler) validate(input *Input) error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.RestaurantID) == "" {
		return fmt.Errorf("%w: restaurantId is required", ErrInvalidInput)
	}
	if input.Score == nil {
		return fmt.Errorf("%w: score is required", ErrInvalidInput)
	}
	if s := *input.Score; math.IsNaN(s) || s < MinScore || s > MaxScore {
		return fmt.Errorf("%w: %v is outside %v-%v", ErrInvalidScore, s, MinScore, MaxScore)
	}
	if input.ReviewText != nil && h.config.MaxReviewLength > 0 && len(*input.ReviewText) > h.config.MaxReviewLength {
		return fmt.Errorf("%w: reviewText longer than %d", ErrInvalidInput, h.config.MaxReviewLength)
	}
	return nil
}

func toStandardError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error(), err)
	case errors.Is(err, ErrInvalidScore):
		return apperrors.NewInvalidScoreError(err.Error())
	case errors.Is(err, ErrRestaurantNotFound):
		return apperrors.NewRestaurantNotFoundError(input.RestaurantID)
	case errors.Is(err, ErrDatabaseInsertFailed):
		return apperrors.NewDatabaseInsertFailedError(err)
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
