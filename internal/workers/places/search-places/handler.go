package searchplaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	"dishlist-workers/internal/common/database"
	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/common/metrics"
	"dishlist-workers/internal/common/places"
	"dishlist-workers/internal/models"
)

const (
	TaskType = "search-places"

	cacheKeyPrefix = "places:search:"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

// Searcher runs a places text search with details enrichment.
type Searcher interface {
	Search(ctx context.Context, query string) ([]places.Place, error)
}

type Handler struct {
	config       *Config
	searcher     Searcher
	redis        redis.Cmdable
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. rdb may be nil to disable caching.
func NewHandler(config *Config, searcher Searcher, rdb redis.Cmdable, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		searcher:     searcher,
		redis:        rdb,
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
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	minRating := h.config.MinRating
	if input.MinRating != nil {
		minRating = *input.MinRating
	}

	found, fromCache, err := h.search(ctx, query)
	if err != nil {
		return nil, err
	}

	if h.config.MaxResults > 0 && len(found) > h.config.MaxResults {
		found = found[:h.config.MaxResults]
	}

	out := &Output{
		Places:     []models.PlaceRecord{},
		TotalFound: len(found),
		Skipped:    []string{},
		FromCache:  fromCache,
	}
	for _, p := range found {
		if p.Rating == nil || *p.Rating < minRating {
			out.Skipped = append(out.Skipped, p.Name)
			continue
		}
		out.Places = append(out.Places, p.ToRecord(h.config.FallbackNeighbourhood))
	}

	h.logger.Info("places search completed", map[string]interface{}{
		"query":     query,
		"found":     out.TotalFound,
		"kept":      len(out.Places),
		"skipped":   len(out.Skipped),
		"fromCache": fromCache,
	})
	return out, nil
}

// search reads through the cache. Cache failures are logged and bypassed.
func (h *Handler) search(ctx context.Context, query string) ([]places.Place, bool, error) {
	key := CacheKey(query)

	if h.redis != nil {
		var cached []places.Place
		hit, err := database.GetJSON(ctx, h.redis, key, &cached)
		if err != nil {
			h.logger.Warn("places cache read failed", map[string]interface{}{"key": key, "error": err})
		}
		metrics.RecordCache("places", hit)
		if hit {
			return cached, true, nil
		}
	}

	found, err := h.searcher.Search(ctx, query)
	if err != nil {
		return nil, false, err
	}

	if h.redis != nil {
		if err := database.SetJSON(ctx, h.redis, key, found, h.config.CacheTTL); err != nil {
			h.logger.Warn("places cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return found, false, nil
}

// CacheKey is the Redis key of a search, insensitive to case and padding.
func CacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func toStandardError(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return apperrors.NewInvalidInputError(err.Error(), err)
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
