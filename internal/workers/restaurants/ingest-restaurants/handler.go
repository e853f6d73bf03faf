package ingestrestaurants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/common/metrics"
	"dishlist-workers/internal/dishlist/cache"
	"dishlist-workers/internal/dishlist/chains"
	"dishlist-workers/internal/dishlist/search"
	"dishlist-workers/internal/dishlist/store"
	"dishlist-workers/internal/models"
)

const (
	TaskType = "ingest-restaurants"
)

var (
	ErrInvalidInput     = errors.New("INVALID_INPUT")
	ErrCityNotFound     = errors.New("CITY_NOT_FOUND")
	ErrCategoryNotFound = errors.New("CATEGORY_NOT_FOUND")
	ErrDatabaseFailure  = errors.New("DATABASE_CONNECTION_FAILED")
)

// Store is the slice of the restaurant store ingestion writes through.
type Store interface {
	CityBySlug(ctx context.Context, slug string) (*models.City, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	Finder(cityID string) chains.EntityFinder
	SaveResult(ctx context.Context, cityID, categoryID string, res chains.Result) (store.Saved, error)
	Restaurant(ctx context.Context, id string) (*models.Restaurant, error)
	RestaurantLocations(ctx context.Context, restaurantID string) ([]models.Location, error)
	RestaurantCategories(ctx context.Context, restaurantID string) ([]models.Category, error)
	RestaurantRatings(ctx context.Context, restaurantID string) ([]models.Rating, error)
}

// Indexer writes restaurant documents to the search index.
type Indexer interface {
	IndexRestaurant(ctx context.Context, index string, doc models.RestaurantDocument) error
}

type Handler struct {
	config       *Config
	consolidator *chains.Consolidator
	store        Store
	indexer      Indexer
	summaries    *cache.SummaryCache
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. indexer may be nil to skip indexing.
func NewHandler(config *Config, consolidator *chains.Consolidator, st Store, indexer Indexer, summaries *cache.SummaryCache, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		consolidator: consolidator,
		store:        st,
		indexer:      indexer,
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
		h.errorHandler.HandleJobError(context.Background(), client, job, h.toStandardError(&input, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.CategorySlug) == "" {
		return nil, fmt.Errorf("%w: categorySlug is required", ErrInvalidInput)
	}

	report := models.IngestionReport{
		RunID:        input.RunID,
		CitySlug:     h.citySlug(input),
		CategorySlug: input.CategorySlug,
		Results:      []models.IngestResult{},
		StartedAt:    time.Now().UTC(),
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	city, err := h.store.CityBySlug(ctx, report.CitySlug)
	if err != nil {
		return nil, lookupError(err, ErrCityNotFound, report.CitySlug)
	}
	category, err := h.store.CategoryBySlug(ctx, input.CategorySlug)
	if err != nil {
		return nil, lookupError(err, ErrCategoryNotFound, input.CategorySlug)
	}

	results, err := h.consolidator.Consolidate(ctx, input.Restaurants, h.store.Finder(city.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseFailure, err)
	}

	var touched []string
	for _, res := range results {
		if res.Created && len(res.Entity.Locations) > 1 {
			addr := fmt.Sprintf("%d locations across %s", len(res.Entity.Locations), city.Name)
			res.Entity.Address = &addr
		}

		row := h.save(ctx, city.ID, category.ID, res)
		report.Results = append(report.Results, row)
		if row.Success {
			touched = append(touched, row.RestaurantID)
		}
	}

	if err := h.summaries.Invalidate(ctx, touched...); err != nil {
		h.logger.Warn("rating summary invalidation failed", map[string]interface{}{"error": err})
	}
	for _, id := range touched {
		h.index(ctx, city.Slug, id)
	}

	report.FinishedAt = time.Now().UTC()
	succeeded, failed := report.Counts()

	h.logger.Info("ingestion completed", map[string]interface{}{
		"runId":     report.RunID,
		"category":  report.CategorySlug,
		"records":   len(input.Restaurants),
		"entities":  len(results),
		"succeeded": succeeded,
		"failed":    failed,
	})

	return &Output{Report: report, Succeeded: succeeded, Failed: failed}, nil
}

// save persists one entity. Failures are reported on the row and do not
// stop the run.
func (h *Handler) save(ctx context.Context, cityID, categoryID string, res chains.Result) models.IngestResult {
	row := models.IngestResult{Name: res.Entity.Name}
	if strings.TrimSpace(res.Entity.Name) == "" {
		metrics.RestaurantsIngested.WithLabelValues("failed").Inc()
		row.Error = "restaurant name is empty"
		return row
	}

	saved, err := h.store.SaveResult(ctx, cityID, categoryID, res)
	if err != nil {
		metrics.RestaurantsIngested.WithLabelValues("failed").Inc()
		h.logger.Warn("restaurant not saved", map[string]interface{}{
			"name":  res.Entity.Name,
			"error": err,
		})
		row.Error = err.Error()
		return row
	}

	row.Success = true
	row.RestaurantID = saved.RestaurantID
	row.Created = saved.Created
	row.Locations = saved.LocationsAdded
	row.Note = note(res, saved)

	switch {
	case saved.Created:
		metrics.RestaurantsIngested.WithLabelValues("created").Inc()
	case saved.LocationsAdded > 0:
		metrics.RestaurantsIngested.WithLabelValues("updated").Inc()
	default:
		metrics.RestaurantsIngested.WithLabelValues("unchanged").Inc()
	}
	return row
}

func note(res chains.Result, saved store.Saved) string {
	chain := res.Entity.IsChain()
	switch {
	case chain && saved.Created:
		return "chain created with " + locations(saved.LocationsAdded)
	case chain && saved.LocationsAdded > 0:
		return "added " + locations(saved.LocationsAdded) + " to existing chain"
	case chain:
		return "chain already up to date"
	case !saved.Created:
		return "already exists"
	}
	return ""
}

func locations(n int) string {
	if n == 1 {
		return "1 location"
	}
	return fmt.Sprintf("%d locations", n)
}

// index refreshes the search document of a restaurant. Failures are logged.
func (h *Handler) index(ctx context.Context, citySlug, id string) {
	if h.indexer == nil {
		return
	}
	doc, err := h.document(ctx, citySlug, id)
	if err == nil {
		err = h.indexer.IndexRestaurant(ctx, h.config.IndexName, doc)
	}
	if err != nil {
		h.logger.Warn("restaurant not indexed", map[string]interface{}{
			"restaurantId": id,
			"error":        err,
		})
	}
}

func (h *Handler) document(ctx context.Context, citySlug, id string) (models.RestaurantDocument, error) {
	r, err := h.store.Restaurant(ctx, id)
	if err != nil {
		return models.RestaurantDocument{}, err
	}
	locations, err := h.store.RestaurantLocations(ctx, id)
	if err != nil {
		return models.RestaurantDocument{}, err
	}
	categories, err := h.store.RestaurantCategories(ctx, id)
	if err != nil {
		return models.RestaurantDocument{}, err
	}
	rs, err := h.store.RestaurantRatings(ctx, id)
	if err != nil {
		return models.RestaurantDocument{}, err
	}
	return search.Document(*r, citySlug, categories, locations, rs), nil
}

func lookupError(err, notFound error, slug string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", notFound, slug)
	}
	return fmt.Errorf("%w: %v", ErrDatabaseFailure, err)
}

func (h *Handler) citySlug(input *Input) string {
	if input.CitySlug != "" {
		return input.CitySlug
	}
	return h.config.DefaultCitySlug
}

func (h *Handler) toStandardError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error(), err)
	case errors.Is(err, ErrCityNotFound):
		return apperrors.NewCityNotFoundError(h.citySlug(input))
	case errors.Is(err, ErrCategoryNotFound):
		return apperrors.NewCategoryNotFoundError(input.CategorySlug)
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
