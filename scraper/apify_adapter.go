package scraper

import (
	"encoding/json"
	"fmt"

	"marketplace_watcher/models"
)

// ApifyActorAdapter defines the interface for Apify actor-specific logic
type ApifyActorAdapter interface {
	ActorID() string
	BuildInput(searchURL string, limit int) map[string]any
	ParseListing(data json.RawMessage) (models.RawListing, error)
}

// GetApifyAdapter returns the appropriate adapter for the given actor type
func GetApifyAdapter(actorType string) (ApifyActorAdapter, error) {
	switch actorType {
	case "", "facebook-marketplace", "apify/facebook-marketplace-scraper":
		return &FacebookMarketplaceAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown apify actor type: %s", actorType)
	}
}
