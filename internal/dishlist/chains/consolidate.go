// Package chains groups raw place listings into restaurant entities, merging
// branches of the same chain into one entity with a list of locations.
package chains

import (
	"context"
	"fmt"
	"strings"

	"dishlist-workers/internal/dishlist/ratings"
	"dishlist-workers/internal/models"
)

// Config is fixed for the lifetime of a Consolidator.
type Config struct {
	// KnownChains are canonical brand names matched case-insensitively as
	// substrings of a record's base name.
	KnownChains []string
	// Neighbourhoods are area names recognized as a trailing name suffix.
	Neighbourhoods []string
	// RatingSourceTag labels seed ratings derived from record ratings.
	RatingSourceTag string
	// SourceRatingScale is the top of the provider rating scale (5 for stars).
	SourceRatingScale float64
}

// EntityHandle identifies an already persisted chain.
type EntityHandle struct {
	ID            string
	Name          string
	Neighbourhood string
	LocationCount int
}

// EntityFinder looks up a persisted entity by canonical name. It returns
// nil, nil when none exists.
type EntityFinder interface {
	FindExisting(ctx context.Context, name string) (*EntityHandle, error)
}

// Result is one consolidated entity. When Created is false the entity's
// locations are to be appended to the persisted entity ExistingID.
type Result struct {
	Entity      models.RestaurantEntity
	Created     bool
	ExistingID  string
	SeedRatings []models.Rating
}

type Consolidator struct {
	knownChains []string
	parser      *NameParser
	sourceTag   string
	scale       float64
}

func NewConsolidator(cfg Config) *Consolidator {
	known := make([]string, 0, len(cfg.KnownChains))
	for _, k := range cfg.KnownChains {
		if k = strings.TrimSpace(k); k != "" {
			known = append(known, k)
		}
	}
	return &Consolidator{
		knownChains: known,
		parser:      NewNameParser(cfg.Neighbourhoods),
		sourceTag:   cfg.RatingSourceTag,
		scale:       cfg.SourceRatingScale,
	}
}

type member struct {
	record        models.PlaceRecord
	parsed        ParsedName
	neighbourhood string
}

type group struct {
	name    string
	chain   bool
	members []member
}

// Consolidate partitions batch into chains and independents, in order of
// first appearance. finder is consulted once per chain and may be nil.
func (c *Consolidator) Consolidate(ctx context.Context, batch []models.PlaceRecord, finder EntityFinder) ([]Result, error) {
	groups := c.group(batch)

	results := make([]Result, 0, len(groups))
	for _, g := range groups {
		if !g.chain {
			results = append(results, c.independent(g.members[0]))
			continue
		}

		var existing *EntityHandle
		if finder != nil {
			found, err := finder.FindExisting(ctx, g.name)
			if err != nil {
				return nil, fmt.Errorf("find existing chain %q: %w", g.name, err)
			}
			existing = found
		}
		results = append(results, c.chainResult(g, existing))
	}
	return results, nil
}

func (c *Consolidator) group(batch []models.PlaceRecord) []*group {
	members := make([]member, len(batch))
	baseCounts := make(map[string]int, len(batch))
	for i, rec := range batch {
		parsed := c.parser.Parse(rec.Name)
		members[i] = member{
			record:        rec,
			parsed:        parsed,
			neighbourhood: effectiveNeighbourhood(rec, parsed),
		}
		if parsed.Base != "" {
			baseCounts[strings.ToLower(parsed.Base)]++
		}
	}

	var groups []*group
	byKey := make(map[string]*group)
	for _, m := range members {
		name, chain := c.canonicalName(m.parsed.Base, baseCounts)
		if !chain {
			groups = append(groups, &group{name: m.parsed.Cleaned, members: []member{m}})
			continue
		}

		key := strings.ToLower(name)
		g, ok := byKey[key]
		if !ok {
			g = &group{name: name, chain: true}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, m)
	}
	return groups
}

// canonicalName returns the chain identity of base: the known chain entry
// it contains, or base itself when it repeats within the batch.
func (c *Consolidator) canonicalName(base string, baseCounts map[string]int) (string, bool) {
	if base == "" {
		return "", false
	}
	lower := strings.ToLower(base)
	for _, k := range c.knownChains {
		if strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	if baseCounts[lower] >= 2 {
		return base, true
	}
	return "", false
}

func (c *Consolidator) independent(m member) Result {
	seeds := c.seedRatings([]member{m})
	summary := ratings.Aggregate(seeds)
	return Result{
		Entity: models.RestaurantEntity{
			Name:          m.parsed.Cleaned,
			Neighbourhood: m.neighbourhood,
			Address:       m.record.Address,
			Latitude:      m.record.Latitude,
			Longitude:     m.record.Longitude,
			ExternalID:    m.record.ExternalID,
			Locations:     []models.Location{},
			AverageRating: summary.AverageRating,
			RatingCount:   summary.Count,
		},
		Created:     true,
		SeedRatings: seeds,
	}
}

func (c *Consolidator) chainResult(g *group, existing *EntityHandle) Result {
	locations := make([]models.Location, 0, len(g.members))
	for _, m := range g.members {
		locations = append(locations, models.Location{
			Name:          strings.TrimSpace(m.record.Name),
			Neighbourhood: m.neighbourhood,
			Address:       m.record.Address,
			Latitude:      m.record.Latitude,
			Longitude:     m.record.Longitude,
			ExternalID:    m.record.ExternalID,
			RatingValue:   m.record.RatingValue,
		})
	}

	sites := len(locations)
	if existing != nil {
		sites += existing.LocationCount
	}

	entity := models.RestaurantEntity{
		Name:      g.name,
		Locations: locations,
	}
	switch {
	case sites > 1:
		entity.Neighbourhood = models.MultipleLocations
	case existing != nil && existing.LocationCount == 0 && existing.Neighbourhood != "":
		entity.Neighbourhood = existing.Neighbourhood
	default:
		entity.Neighbourhood = g.members[0].neighbourhood
	}
	if existing == nil && len(g.members) == 1 {
		only := g.members[0].record
		entity.Address, entity.Latitude, entity.Longitude, entity.ExternalID =
			only.Address, only.Latitude, only.Longitude, only.ExternalID
	}

	seeds := c.seedRatings(g.members)
	summary := ratings.Aggregate(seeds)
	entity.AverageRating = summary.AverageRating
	entity.RatingCount = summary.Count

	res := Result{Entity: entity, Created: existing == nil, SeedRatings: seeds}
	if existing != nil {
		res.ExistingID = existing.ID
	}
	return res
}

func (c *Consolidator) seedRatings(members []member) []models.Rating {
	var seeds []models.Rating
	for _, m := range members {
		if m.record.RatingValue == nil {
			continue
		}
		seeds = append(seeds, models.Rating{
			Score:     ratings.ToTenPointScale(*m.record.RatingValue, c.scale),
			SourceTag: c.sourceTag,
		})
	}
	return seeds
}

func effectiveNeighbourhood(rec models.PlaceRecord, parsed ParsedName) string {
	if parsed.Suffix != "" {
		return parsed.Suffix
	}
	if rec.Neighbourhood != nil {
		if n := strings.TrimSpace(*rec.Neighbourhood); n != "" {
			return n
		}
	}
	if rec.Address != nil {
		return NeighbourhoodFromAddress(*rec.Address)
	}
	return ""
}
