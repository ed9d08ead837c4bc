package scraper

import (
	"context"
	"log"
	"net/http"

	"marketplace_watcher/config"
	"marketplace_watcher/metrics"
	"marketplace_watcher/models"
)

// ApifySource is the listing source backed by an Apify actor. It satisfies
// services.ListingSource.
type ApifySource struct {
	client  *ApifyClient
	adapter ApifyActorAdapter
	limit   int
}

func NewApifySource(cfg *config.ApifyConfig, httpClient *http.Client) *ApifySource {
	adapter, err := GetApifyAdapter(cfg.Actor)
	if err != nil {
		log.Printf("Warning: %v, using facebook-marketplace adapter", err)
		adapter = &FacebookMarketplaceAdapter{}
	}

	return &ApifySource{
		client:  NewApifyClient(cfg.APIKey, httpClient),
		adapter: adapter,
		limit:   cfg.ResultsLimit,
	}
}

// FetchListings runs the actor for searchURL and returns at most limit parsed
// items. Items that fail to decode are skipped.
func (s *ApifySource) FetchListings(ctx context.Context, searchURL string) ([]models.RawListing, error) {
	datasetID, err := s.client.RunActor(ctx, s.adapter.ActorID(), s.adapter.BuildInput(searchURL, s.limit))
	if err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	items, err := s.client.DatasetItems(ctx, datasetID)
	if err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	listings := make([]models.RawListing, 0, len(items))
	for _, item := range items {
		if s.limit > 0 && len(listings) >= s.limit {
			break
		}
		listing, err := s.adapter.ParseListing(item)
		if err != nil {
			log.Printf("Warning: failed to parse listing: %v", err)
			continue
		}
		listings = append(listings, listing)
	}

	metrics.SourceFetchesTotal.WithLabelValues("success").Inc()
	log.Printf("Apify: fetched %d listings for %s", len(listings), searchURL)
	return listings, nil
}
