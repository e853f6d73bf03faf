package queryelasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/models"
	"dishlist-workers/internal/workers/data-access/query-elasticsearch/queries"
)

const (
	TaskType = "query-elasticsearch"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
	ErrInvalidQueryType  = errors.New("INVALID_QUERY_TYPE")
	ErrInvalidInput      = errors.New("INVALID_INPUT")

	ErrElasticsearchConnectionFailed = errors.New("ELASTICSEARCH_CONNECTION_FAILED")
)

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidInput)
	}

	q := queries.SearchQuery{
		Index:     input.IndexName,
		QueryType: models.SearchType(input.QueryType),
		Text:      input.Query,
		City:      input.CitySlug,
		Category:  input.Category,
		MinRating: input.MinRating,
		Lat:       input.Lat,
		Lon:       input.Lon,
		Distance:  input.Distance,
		From:      input.Pagination.From,
		Size:      input.Pagination.Size,
	}
	if q.Index == "" {
		q.Index = h.config.DefaultIndex
	}
	if q.City == "" {
		q.City = h.config.DefaultCity
	}

	result, err := queries.Execute(ctx, h.client, q)
	if err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			return nil, ErrSearchTimeout
		case errors.Is(err, queries.ErrUnknownQueryType):
			return nil, fmt.Errorf("%w: %v", ErrInvalidQueryType, err)
		case errors.Is(err, queries.ErrMissingLocation), errors.Is(err, queries.ErrMissingIndex):
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		case queries.IsIndexNotFound(err):
			return nil, fmt.Errorf("%w: %v", ErrIndexNotFound, err)
		case errors.Is(err, queries.ErrConnection):
			return nil, fmt.Errorf("%w: %v", ErrElasticsearchConnectionFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	h.logger.Debug("search executed", map[string]interface{}{
		"queryType": input.QueryType,
		"totalHits": result.TotalHits,
		"took":      result.Took,
	})

	return &Output{
		Data:      result.Data,
		TotalHits: result.TotalHits,
		MaxScore:  result.MaxScore,
		Took:      result.Took,
	}, nil
}

func (h *Handler) toStandardError(input *Input, err error) error {
	index := input.IndexName
	if index == "" {
		index = h.config.DefaultIndex
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error(), err)
	case errors.Is(err, ErrInvalidQueryType):
		return apperrors.NewInvalidQueryTypeError(input.QueryType)
	case errors.Is(err, ErrIndexNotFound):
		return apperrors.NewIndexNotFoundError(index)
	case errors.Is(err, ErrSearchTimeout):
		return apperrors.NewSearchTimeoutError(input.QueryType)
	case errors.Is(err, ErrElasticsearchConnectionFailed):
		return apperrors.NewElasticsearchConnectionFailedError(err)
	}
	return apperrors.NewSearchQueryFailedError(input.QueryType, err)
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
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
