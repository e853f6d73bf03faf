package rankcategory

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
	"dishlist-workers/internal/dishlist/rankings"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

const TaskType = "rank-category"

var (
	ErrInvalidInput         = errors.New("INVALID_INPUT")
	ErrCityNotFound         = errors.New("CITY_NOT_FOUND")
	ErrCategoryNotFound     = errors.New("CATEGORY_NOT_FOUND")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
)

type Store interface {
	CityBySlug(ctx context.Context, slug string) (*models.City, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CategoryRestaurants(ctx context.Context, cityID, categoryID string) ([]models.Restaurant, error)
	RatingsForRestaurants(ctx context.Context, ids []string) (map[string][]models.Rating, error)
}

type Handler struct {
	config       *Config
	store        Store
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, st Store, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        st,
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
		h.errorHandler.HandleJobError(context.Background(), client, job, h.toStandardError(&input, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	categorySlug := strings.TrimSpace(input.CategorySlug)
	if categorySlug == "" {
		return nil, fmt.Errorf("%w: categorySlug is required", ErrInvalidInput)
	}
	if input.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	citySlug := h.citySlug(input)
	limit := input.Limit
	if limit == 0 {
		limit = h.config.DefaultLimit
	}

	city, err := h.store.CityBySlug(ctx, citySlug)
	if err != nil {
		return nil, lookupError(ErrCityNotFound, err)
	}
	category, err := h.store.CategoryBySlug(ctx, categorySlug)
	if err != nil {
		return nil, lookupError(ErrCategoryNotFound, err)
	}

	restaurants, err := h.store.CategoryRestaurants(ctx, city.ID, category.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}
	ids := make([]string, len(restaurants))
	for i, r := range restaurants {
		ids[i] = r.ID
	}
	byID, err := h.store.RatingsForRestaurants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	board := rankings.Leaderboard(rankings.Candidates(restaurants, byID), limit)

	h.logger.Info("category ranked", map[string]interface{}{
		"city":     city.Slug,
		"category": category.Slug,
		"total":    len(restaurants),
		"ranked":   len(board),
	})

	return &Output{
		City:        *city,
		Category:    *category,
		Leaderboard: board,
		Total:       len(restaurants),
	}, nil
}

func (h *Handler) citySlug(input *Input) string {
	if s := strings.TrimSpace(input.CitySlug); s != "" {
		return s
	}
	return h.config.DefaultCitySlug
}

func lookupError(notFound, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", notFound, err)
	}
	return fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
}

func (h *Handler) toStandardError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error(), err)
	case errors.Is(err, ErrCityNotFound):
		return apperrors.NewCityNotFoundError(h.citySlug(input))
	case errors.Is(err, ErrCategoryNotFound):
		return apperrors.NewCategoryNotFoundError(input.CategorySlug)
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
