package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"marketplace_watcher/metrics"
	"marketplace_watcher/models"
)

const maxEnrichmentAttempts = 3

var errNoDescription = errors.New("no description on page")

// EnrichmentStore is the listing storage the enrichment worker needs
type EnrichmentStore interface {
	ListListingsForEnrichment(ctx context.Context, maxAttempts, limit int) ([]models.Listing, error)
	SetListingDescription(ctx context.Context, id, description string) error
	IncrementEnrichmentAttempts(ctx context.Context, id string) error
}

// EnrichmentWorker fetches listing pages and fills in descriptions the
// search results don't carry
type EnrichmentWorker struct {
	store      EnrichmentStore
	httpClient *http.Client
	delay      time.Duration
	triggerCh  chan struct{}
	logFunc    LogFunc
}

// NewEnrichmentWorker creates a new enrichment worker. client should be the
// proxied scraping client.
func NewEnrichmentWorker(store EnrichmentStore, client *http.Client) *EnrichmentWorker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EnrichmentWorker{
		store:      store,
		httpClient: client,
		delay:      500 * time.Millisecond,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *EnrichmentWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *EnrichmentWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// EnrichedData is what the listing page exposes through its meta tags
type EnrichedData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Enrich fetches a listing URL and extracts its page metadata
func (w *EnrichmentWorker) Enrich(ctx context.Context, listingURL string) (*EnrichedData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("listing not found: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return ParseHTML(resp.Body)
}

// ParseHTML reads Open Graph tags, falling back to the plain meta description
func ParseHTML(r io.Reader) (*EnrichedData, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	data := &EnrichedData{
		Title:       metaContent(doc, `meta[property="og:title"]`),
		Description: metaContent(doc, `meta[property="og:description"]`),
		ImageURL:    metaContent(doc, `meta[property="og:image"]`),
	}
	if data.Description == "" {
		data.Description = metaContent(doc, `meta[name="description"]`)
	}
	if data.Title == "" {
		data.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return data, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// Run starts the enrichment worker loop
func (w *EnrichmentWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Enrichment worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *EnrichmentWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.ListListingsForEnrichment(ctx, maxEnrichmentAttempts, batchSize)
	if err != nil {
		log.Printf("Enrichment: query error: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	log.Printf("Enrichment: processing %d listings", len(listings))
	enriched := 0

	for i, l := range listings {
		if i > 0 && w.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.delay):
			}
		}

		if err := w.enrichOne(ctx, &l); err != nil {
			log.Printf("Enrichment: failed to enrich %s: %v", l.ID, err)
			metrics.EnrichmentsTotal.WithLabelValues("error").Inc()
			if err := w.store.IncrementEnrichmentAttempts(ctx, l.ID); err != nil {
				log.Printf("Enrichment: failed to bump attempts for %s: %v", l.ID, err)
			}
			if l.EnrichmentAttempts+1 >= maxEnrichmentAttempts {
				log.Printf("Enrichment: max attempts reached for %s, giving up", l.ID)
				w.logFunc(models.LogLevelWarn, "enrichment", fmt.Sprintf("gave up on listing %s: %v", l.ID, err))
			}
			continue
		}

		metrics.EnrichmentsTotal.WithLabelValues("success").Inc()
		enriched++
	}

	w.logFunc(models.LogLevelInfo, "enrichment", fmt.Sprintf("enriched %d of %d listings", enriched, len(listings)))
}

func (w *EnrichmentWorker) enrichOne(ctx context.Context, l *models.Listing) error {
	data, err := w.Enrich(ctx, l.MarketplaceURL)
	if err != nil {
		return err
	}
	if data.Description == "" {
		return errNoDescription
	}
	if err := w.store.SetListingDescription(ctx, l.ID, data.Description); err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}
