package builddishlist100

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

const TaskType = "build-dishlist-100"

var (
	ErrCityNotFound         = errors.New("CITY_NOT_FOUND")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
)

type Store interface {
	CityBySlug(ctx context.Context, slug string) (*models.City, error)
	Categories(ctx context.Context) ([]models.Category, error)
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

// execute builds one leaderboard per category and merges them. Ratings are
// fetched once for every restaurant seen across categories.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	city, err := h.store.CityBySlug(ctx, h.citySlug(input))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrCityNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	categories, err := h.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	perCategory := make([][]models.Restaurant, 0, len(categories))
	seen := make(map[string]bool)
	var ids []string
	for _, c := range categories {
		restaurants, err := h.store.CategoryRestaurants(ctx, city.ID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: category %s: %v", ErrQueryExecutionFailed, c.Slug, err)
		}
		perCategory = append(perCategory, restaurants)
		for _, r := range restaurants {
			if !seen[r.ID] {
				seen[r.ID] = true
				ids = append(ids, r.ID)
			}
		}
	}

	byID, err := h.store.RatingsForRestaurants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	boards := make([][]models.RestaurantSummary, 0, len(perCategory))
	for _, restaurants := range perCategory {
		boards = append(boards, rankings.Leaderboard(rankings.Candidates(restaurants, byID), 0))
	}
	entries := rankings.Top(boards, h.config.Threshold, h.config.Limit)
	if entries == nil {
		entries = []models.RestaurantSummary{}
	}

	h.logger.Info("dishlist 100 built", map[string]interface{}{
		"city":       city.Slug,
		"categories": len(categories),
		"candidates": len(ids),
		"entries":    len(entries),
	})

	return &Output{
		City:       *city,
		Entries:    entries,
		Categories: len(categories),
		Candidates: len(ids),
		Threshold:  h.config.Threshold,
	}, nil
}

func (h *Handler) citySlug(input *Input) string {
	if s := strings.TrimSpace(input.CitySlug); s != "" {
		return s
	}
	return h.config.DefaultCitySlug
}

func (h *Handler) toStandardError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrCityNotFound):
		return apperrors.NewCityNotFoundError(h.citySlug(input))
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
