package addtomylist

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
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

const TaskType = "add-to-my-list"

var (
	ErrInvalidInput         = errors.New("INVALID_INPUT")
	ErrRestaurantNotFound   = errors.New("RESTAURANT_NOT_FOUND")
	ErrDuplicateListEntry   = errors.New("DUPLICATE_LIST_ENTRY")
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
)

type Store interface {
	Restaurant(ctx context.Context, id string) (*models.Restaurant, error)
	AddMyListEntry(ctx context.Context, userID, restaurantID string) (models.MyListEntry, error)
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
		h.errorHandler.HandleJobError(context.Background(), client, job, toStandardError(&input, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.RestaurantID = strings.TrimSpace(input.RestaurantID)
	if input.UserID == "" || input.RestaurantID == "" {
		return nil, fmt.Errorf("%w: userId and restaurantId are required", ErrInvalidInput)
	}

	r, err := h.store.Restaurant(ctx, input.RestaurantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRestaurantNotFound, input.RestaurantID)
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
	}

	entry, err := h.store.AddMyListEntry(ctx, input.UserID, input.RestaurantID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateListEntry, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
	}
	entry.RestaurantName = r.Name
	entry.Neighbourhood = r.Neighbourhood

	h.logger.Info("restaurant added to list", map[string]interface{}{
		"userId":       input.UserID,
		"restaurantId": input.RestaurantID,
		"position":     entry.Position,
	})

	return &Output{Entry: entry}, nil
}

func toStandardError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error(), err)
	case errors.Is(err, ErrRestaurantNotFound):
		return apperrors.NewRestaurantNotFoundError(input.RestaurantID)
	case errors.Is(err, ErrDuplicateListEntry):
		return apperrors.NewDuplicateListEntryError(input.RestaurantID)
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
