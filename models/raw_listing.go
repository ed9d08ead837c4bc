package models

// RawListing is one item as returned by the marketplace scraping actor.
// Fields are optional upstream; the mapper supplies defaults.
type RawListing struct {
	ID                      string       `json:"id"`
	FacebookURL             string       `json:"facebookUrl"`
	ListingURL              string       `json:"listingUrl"`
	MarketplaceListingTitle string       `json:"marketplace_listing_title"`
	ListingPrice            *RawPrice    `json:"listing_price"`
	PrimaryListingPhoto     *RawPhoto    `json:"primary_listing_photo"`
	Location                *RawLocation `json:"location"`
}

type RawPrice struct {
	FormattedAmount            string `json:"formatted_amount"`
	AmountWithOffsetInCurrency string `json:"amount_with_offset_in_currency"`
	Amount                     string `json:"amount"`
}

type RawPhoto struct {
	ID            string `json:"id"`
	PhotoImageURL string `json:"photo_image_url"`
}

type RawLocation struct {
	ReverseGeocode *RawReverseGeocode `json:"reverse_geocode"`
}

type RawReverseGeocode struct {
	City     string       `json:"city"`
	State    string       `json:"state"`
	CityPage *RawCityPage `json:"city_page"`
}

type RawCityPage struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
