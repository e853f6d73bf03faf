package consolidatechains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/dishlist/chains"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

const (
	TaskType = "consolidate-chains"
)

var (
	ErrCityNotFound    = errors.New("CITY_NOT_FOUND")
	ErrDatabaseFailure = errors.New("DATABASE_CONNECTION_FAILED")
)

// Store resolves cities and the chains already persisted in them.
type Store interface {
	CityBySlug(ctx context.Context, slug string) (*models.City, error)
	Finder(cityID string) chains.EntityFinder
}

type Handler struct {
	config       *Config
	consolidator *chains.Consolidator
	store        Store
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. With a nil store the batch is consolidated
// on its own, without looking up persisted chains.
func NewHandler(config *Config, consolidator *chains.Consolidator, st Store, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		consolidator: consolidator,
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
	var finder chains.EntityFinder
	if h.store != nil {
		city, err := h.store.CityBySlug(ctx, h.citySlug(input))
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCityNotFound, h.citySlug(input))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseFailure, err)
		}
		finder = h.store.Finder(city.ID)
	}

	results, err := h.consolidator.Consolidate(ctx, input.Records, finder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseFailure, err)
	}

	out := &Output{
		Entities:     make([]Entity, 0, len(results)),
		TotalRecords: len(input.Records),
	}
	for _, res := range results {
		chain := res.Entity.IsChain()
		if chain {
			out.ChainCount++
		} else {
			out.IndependentCount++
		}
		out.Entities = append(out.Entities, Entity{
			RestaurantEntity: res.Entity,
			Chain:            chain,
			Created:          res.Created,
			ExistingID:       res.ExistingID,
		})
	}

	h.logger.Info("batch consolidated", map[string]interface{}{
		"records":      out.TotalRecords,
		"chains":       out.ChainCount,
		"independents": out.IndependentCount,
	})
	return out, nil
}

func (h *Handler) citySlug(input *Input) string {
	if input.CitySlug != "" {
		return input.CitySlug
	}
	return h.config.DefaultCitySlug
}

func (h *Handler) toStandardError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrCityNotFound):
		return apperrors.NewCityNotFoundError(h.citySlug(input))
	case errors.Is(err, ErrDatabaseFailure):
		return apperrors.NewDatabaseConnectionFailedError(err)
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
