package scraper

import (
	"encoding/json"
	"fmt"

	"marketplace_watcher/models"
)

const facebookMarketplaceActorID = "U5DUNxhH3qKt5PnCf"

// FacebookMarketplaceAdapter drives the Facebook Marketplace scraper actor.
type FacebookMarketplaceAdapter struct{}

func (a *FacebookMarketplaceAdapter) ActorID() string {
	return facebookMarketplaceActorID
}

func (a *FacebookMarketplaceAdapter) BuildInput(searchURL string, limit int) map[string]any {
	return map[string]any{
		"startUrls": []map[string]string{
			{"url": searchURL},
		},
		"resultsLimit": limit,
	}
}

func (a *FacebookMarketplaceAdapter) ParseListing(data json.RawMessage) (models.RawListing, error) {
	var raw models.RawListing
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.RawListing{}, fmt.Errorf("decode marketplace item: %w", err)
	}
	return raw, nil
}
