package places

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	apperrors "dishlist-workers/internal/common/errors"
	apphttp "dishlist-workers/internal/common/http"
	"dishlist-workers/internal/common/metrics"
	"dishlist-workers/internal/models"
)

const detailFields = "place_id,name,rating,user_ratings_total,formatted_address,geometry,address_components,types,vicinity"

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxDetails  int
	DetailPause time.Duration
}

type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type Place struct {
	PlaceID           string             `json:"place_id"`
	Name              string             `json:"name"`
	Rating            *float64           `json:"rating,omitempty"`
	UserRatingsTotal  *int               `json:"user_ratings_total,omitempty"`
	FormattedAddress  string             `json:"formatted_address,omitempty"`
	Vicinity          string             `json:"vicinity,omitempty"`
	Types             []string           `json:"types,omitempty"`
	AddressComponents []AddressComponent `json:"address_components,omitempty"`
	Geometry          *Geometry          `json:"geometry,omitempty"`
}

type Geometry struct {
	Location LatLng `json:"location"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type searchResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Results      []Place `json:"results"`
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       *Place `json:"result"`
}

// Client talks to the Google Places web service.
type Client struct {
	http   *apphttp.Client
	config Config
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{http: apphttp.NewClient(cfg.Timeout), config: cfg}
}

// TextSearch runs a restaurant text search. ZERO_RESULTS is an empty slice.
func (c *Client) TextSearch(ctx context.Context, query string) ([]Place, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("type", "restaurant")
	q.Set("key", c.config.APIKey)

	var resp searchResponse
	if err := c.get(ctx, "textsearch", q, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
		metrics.PlacesAPIRequests.WithLabelValues("textsearch", "ok").Inc()
		return resp.Results, nil
	case "ZERO_RESULTS":
		metrics.PlacesAPIRequests.WithLabelValues("textsearch", "zero_results").Inc()
		return []Place{}, nil
	default:
		return nil, statusError("textsearch", resp.Status, resp.ErrorMessage)
	}
}

func (c *Client) Details(ctx context.Context, placeID string) (*Place, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailFields)
	q.Set("key", c.config.APIKey)

	var resp detailsResponse
	if err := c.get(ctx, "details", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" || resp.Result == nil {
		return nil, statusError("details", resp.Status, resp.ErrorMessage)
	}
	metrics.PlacesAPIRequests.WithLabelValues("details", "ok").Inc()
	return resp.Result, nil
}

// Search runs a text search and enriches the first MaxDetails results with
// their details, pausing between calls. A failed details call keeps the
// search result as is. Context errors abort the whole search.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	results, err := c.TextSearch(ctx, query)
	if err != nil {
		return nil, err
	}

	limit := c.config.MaxDetails
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	for i := 0; i < limit; i++ {
		if i > 0 && c.config.DetailPause > 0 {
			select {
			case <-time.After(c.config.DetailPause):
			case <-ctx.Done():
				return nil, classify("details", ctx.Err())
			}
		}

		d, err := c.Details(ctx, results[i].PlaceID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		results[i] = merge(results[i], *d)
	}
	return results, nil
}

func merge(base, d Place) Place {
	if d.Rating != nil {
		base.Rating = d.Rating
	}
	if d.UserRatingsTotal != nil {
		base.UserRatingsTotal = d.UserRatingsTotal
	}
	if len(d.AddressComponents) > 0 {
		base.AddressComponents = d.AddressComponents
	}
	if base.FormattedAddress == "" {
		base.FormattedAddress = d.FormattedAddress
	}
	if base.Geometry == nil {
		base.Geometry = d.Geometry
	}
	return base
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, dest interface{}) error {
	u := fmt.Sprintf("%s/%s/json?%s", c.config.BaseURL, endpoint, q.Encode())
	if err := c.http.GetJSON(ctx, u, dest); err != nil {
		return classify(endpoint, err)
	}
	return nil
}

func classify(endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		metrics.PlacesAPIRequests.WithLabelValues(endpoint, "timeout").Inc()
		return apperrors.NewPlacesAPITimeoutError().WithMetadata("endpoint", endpoint)
	}
	metrics.PlacesAPIRequests.WithLabelValues(endpoint, "error").Inc()
	return apperrors.NewPlacesAPIError(fmt.Errorf("%s: %w", endpoint, err))
}

func statusError(endpoint, status, message string) error {
	metrics.PlacesAPIRequests.WithLabelValues(endpoint, strings.ToLower(status)).Inc()
	err := apperrors.NewPlacesAPIError(fmt.Errorf("%s returned %s: %s", endpoint, status, message))
	// INVALID_REQUEST and REQUEST_DENIED are permanent.
	if status == "INVALID_REQUEST" || status == "REQUEST_DENIED" {
		err.Retryable = false
	}
	return err
}

// Neighbourhood picks the sublocality or neighborhood component, then the
// postal town, then fallback.
func Neighbourhood(components []AddressComponent, fallback string) string {
	for _, c := range components {
		if hasType(c, "sublocality") || hasType(c, "neighborhood") {
			return c.LongName
		}
	}
	for _, c := range components {
		if hasType(c, "postal_town") {
			return c.LongName
		}
	}
	return fallback
}

func hasType(c AddressComponent, t string) bool {
	for _, ct := range c.Types {
		if ct == t {
			return true
		}
	}
	return false
}

// ToRecord converts a place into the batch record the consolidator reads.
func (p Place) ToRecord(fallbackNeighbourhood string) models.PlaceRecord {
	rec := models.PlaceRecord{
		Name:        p.Name,
		RatingValue: p.Rating,
		RatingCount: p.UserRatingsTotal,
	}
	if n := Neighbourhood(p.AddressComponents, fallbackNeighbourhood); n != "" {
		rec.Neighbourhood = &n
	}
	if p.FormattedAddress != "" {
		addr := p.FormattedAddress
		rec.Address = &addr
	}
	if p.Geometry != nil {
		lat, lng := p.Geometry.Location.Lat, p.Geometry.Location.Lng
		rec.Latitude, rec.Longitude = &lat, &lng
	}
	if p.PlaceID != "" {
		id := p.PlaceID
		rec.ExternalID = &id
	}
	return rec
}
