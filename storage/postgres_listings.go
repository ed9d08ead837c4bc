package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"marketplace_watcher/models"
)

// =============================================================================
// Listings
// =============================================================================

const listingColumns = `id, title, price, location, location_details, photos, primary_photo_url,
	marketplace_url, description, enrichment_attempts, first_seen_at, last_seen_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	var details []byte
	err := row.Scan(&l.ID, &l.Title, &l.Price, &l.Location, &details, &l.Photos, &l.PrimaryPhotoURL,
		&l.MarketplaceURL, &l.Description, &l.EnrichmentAttempts, &l.FirstSeenAt, &l.LastSeenAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		var ld models.LocationDetails
		if err := json.Unmarshal(details, &ld); err != nil {
			return nil, fmt.Errorf("decode location details for %s: %w", l.ID, err)
		}
		l.LocationDetails = &ld
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}
	return &l, nil
}

func locationDetailsJSON(ld *models.LocationDetails) ([]byte, error) {
	if ld == nil {
		return nil, nil
	}
	return json.Marshal(ld)
}

func photosOrEmpty(photos []string) []string {
	if photos == nil {
		return []string{}
	}
	return photos
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

// InsertListing stores a newly observed listing. If another writer inserted
// the same id first, the mapped fields are overwritten and last_seen_at only
// moves forward.
func (s *PostgresStore) InsertListing(ctx context.Context, l *models.Listing) error {
	details, err := locationDetailsJSON(l.LocationDetails)
	if err != nil {
		return fmt.Errorf("encode location details: %w", err)
	}

	query := `
		INSERT INTO listings (
			id, title, price, location, location_details, photos, primary_photo_url,
			marketplace_url, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			location = EXCLUDED.location,
			location_details = EXCLUDED.location_details,
			photos = EXCLUDED.photos,
			primary_photo_url = EXCLUDED.primary_photo_url,
			marketplace_url = EXCLUDED.marketplace_url,
			last_seen_at = GREATEST(listings.last_seen_at, EXCLUDED.last_seen_at)`

	_, err = s.pool.Exec(ctx, query,
		l.ID, l.Title, l.Price, l.Location, details, photosOrEmpty(l.Photos), l.PrimaryPhotoURL,
		l.MarketplaceURL, l.FirstSeenAt, l.LastSeenAt,
	)
	return err
}

// UpdateListing replaces the mapped fields of an existing listing.
// first_seen_at and enrichment data are left alone.
func (s *PostgresStore) UpdateListing(ctx context.Context, l *models.Listing) error {
	details, err := locationDetailsJSON(l.LocationDetails)
	if err != nil {
		return fmt.Errorf("encode location details: %w", err)
	}

	query := `
		UPDATE listings SET
			title = $2,
			price = $3,
			location = $4,
			location_details = $5,
			photos = $6,
			primary_photo_url = $7,
			marketplace_url = $8,
			last_seen_at = GREATEST(last_seen_at, $9)
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		l.ID, l.Title, l.Price, l.Location, details, photosOrEmpty(l.Photos), l.PrimaryPhotoURL,
		l.MarketplaceURL, l.LastSeenAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not found", l.ID)
	}
	return nil
}

func (s *PostgresStore) TouchListing(ctx context.Context, id string, seenAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1`, id, seenAt)
	return err
}

func (s *PostgresStore) ListListingsForEnrichment(ctx context.Context, maxAttempts, limit int) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE description IS NULL AND enrichment_attempts < $1 AND marketplace_url <> ''
		ORDER BY last_seen_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) SetListingDescription(ctx context.Context, id, description string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings SET description = $2, enrichment_attempts = enrichment_attempts + 1
		WHERE id = $1`, id, description)
	return err
}

func (s *PostgresStore) IncrementEnrichmentAttempts(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE listings SET enrichment_attempts = enrichment_attempts + 1 WHERE id = $1`, id)
	return err
}

// =============================================================================
// Price history
// =============================================================================

func (s *PostgresStore) AddPriceHistory(ctx context.Context, ph *models.PriceHistory) error {
	query := `
		INSERT INTO listing_price_history (listing_id, price, recorded_at)
		VALUES ($1, $2, $3)
		RETURNING id`

	return s.pool.QueryRow(ctx, query, ph.ListingID, ph.Price, ph.RecordedAt).Scan(&ph.ID)
}

// GetPriceHistory returns history per listing, newest first.
func (s *PostgresStore) GetPriceHistory(ctx context.Context, listingIDs []string) (map[string][]models.PriceHistory, error) {
	history := make(map[string][]models.PriceHistory)
	if len(listingIDs) == 0 {
		return history, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, price, recorded_at
		FROM listing_price_history
		WHERE listing_id = ANY($1)
		ORDER BY recorded_at DESC, id DESC`, listingIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ph models.PriceHistory
		if err := rows.Scan(&ph.ID, &ph.ListingID, &ph.Price, &ph.RecordedAt); err != nil {
			return nil, err
		}
		history[ph.ListingID] = append(history[ph.ListingID], ph)
	}
	return history, rows.Err()
}

// =============================================================================
// Matches
// =============================================================================

func (s *PostgresStore) GetMatch(ctx context.Context, monitorID uuid.UUID, listingID string) (*models.Match, error) {
	query := `
		SELECT id, monitor_id, listing_id, matched_at, is_notified
		FROM monitor_matches WHERE monitor_id = $1 AND listing_id = $2`

	var m models.Match
	err := s.pool.QueryRow(ctx, query, monitorID, listingID).Scan(&m.ID, &m.MonitorID, &m.ListingID, &m.MatchedAt, &m.IsNotified)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMatch inserts a match; an existing (monitor, listing) pair is kept.
func (s *PostgresStore) CreateMatch(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO monitor_matches (id, monitor_id, listing_id, matched_at, is_notified)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (monitor_id, listing_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, m.ID, m.MonitorID, m.ListingID, m.MatchedAt, m.IsNotified)
	return err
}

func matchOrderBy(q models.MatchQuery) string {
	dir := "DESC"
	switch q.Order {
	case models.OrderAsc:
		dir = "ASC"
	case models.OrderDesc:
		dir = "DESC"
	}

	switch q.SortBy {
	case models.SortByPrice:
		return "l.price " + dir + ", mm.matched_at DESC"
	default:
		return "mm.matched_at " + dir
	}
}

func (s *PostgresStore) ListMatches(ctx context.Context, monitorID uuid.UUID, q models.MatchQuery) ([]models.MatchWithListing, error) {
	query := `
		SELECT mm.id, mm.monitor_id, mm.listing_id, mm.matched_at, mm.is_notified,
			l.id, l.title, l.price, l.location, l.location_details, l.photos, l.primary_photo_url,
			l.marketplace_url, l.description, l.enrichment_attempts, l.first_seen_at, l.last_seen_at
		FROM monitor_matches mm
		JOIN listings l ON l.id = mm.listing_id
		WHERE mm.monitor_id = $1 AND ($2 = FALSE OR mm.is_notified = FALSE)
		ORDER BY ` + matchOrderBy(q) + `
		LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, monitorID, q.OnlyUnread, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.MatchWithListing
	for rows.Next() {
		var mw models.MatchWithListing
		var details []byte
		l := &mw.Listing
		if err := rows.Scan(&mw.ID, &mw.MonitorID, &mw.ListingID, &mw.MatchedAt, &mw.IsNotified,
			&l.ID, &l.Title, &l.Price, &l.Location, &details, &l.Photos, &l.PrimaryPhotoURL,
			&l.MarketplaceURL, &l.Description, &l.EnrichmentAttempts, &l.FirstSeenAt, &l.LastSeenAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			var ld models.LocationDetails
			if err := json.Unmarshal(details, &ld); err != nil {
				return nil, fmt.Errorf("decode location details for %s: %w", l.ID, err)
			}
			l.LocationDetails = &ld
		}
		matches = append(matches, mw)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) GetMatchStats(ctx context.Context, monitorID uuid.UUID) (models.MatchStats, error) {
	var stats models.MatchStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT is_notified)
		FROM monitor_matches WHERE monitor_id = $1`, monitorID).Scan(&stats.TotalMatches, &stats.UnnotifiedMatches)
	return stats, err
}

// MarkMatchNotified flags one match, scoped to monitors owned by userID.
func (s *PostgresStore) MarkMatchNotified(ctx context.Context, matchID uuid.UUID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE monitor_matches mm SET is_notified = TRUE
		FROM monitors m
		WHERE mm.id = $1 AND mm.monitor_id = m.id AND m.user_id = $2`, matchID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkAllMatchesNotified(ctx context.Context, monitorID uuid.UUID, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE monitor_matches mm SET is_notified = TRUE
		FROM monitors m
		WHERE mm.monitor_id = $1 AND mm.monitor_id = m.id AND m.user_id = $2 AND NOT mm.is_notified`,
		monitorID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) MarkMatchesNotified(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := s.pool.Exec(ctx, `UPDATE monitor_matches SET is_notified = TRUE WHERE id = ANY($1::uuid[])`, strIDs)
	return err
}

// ListUsersWithPendingMatches returns owners of active monitors that have
// unnotified matches.
func (s *PostgresStore) ListUsersWithPendingMatches(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT m.user_id
		FROM monitor_matches mm
		JOIN monitors m ON m.id = mm.monitor_id
		WHERE NOT mm.is_notified AND m.is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *PostgresStore) ListPendingDigestItems(ctx context.Context, userID string, limit int) ([]models.DigestItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mm.id, m.id, m.name, l.id, l.title, l.price, l.marketplace_url, mm.matched_at
		FROM monitor_matches mm
		JOIN monitors m ON m.id = mm.monitor_id
		JOIN listings l ON l.id = mm.listing_id
		WHERE m.user_id = $1 AND m.is_active AND NOT mm.is_notified
		ORDER BY mm.matched_at
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.DigestItem
	for rows.Next() {
		var it models.DigestItem
		if err := rows.Scan(&it.MatchID, &it.MonitorID, &it.MonitorName, &it.ListingID, &it.Title, &it.Price, &it.URL, &it.MatchedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
