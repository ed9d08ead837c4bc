package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"marketplace_watcher/models"
)

const searchURL = "https://www.facebook.com/marketplace/sf/search?query=bike"

// stepClock advances by one minute on every call
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestRunner(store *memStore, source *fakeSource) *MonitorRunner {
	r := NewMonitorRunner(store, source)
	clock := &stepClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	return r
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunMonitorNotFound(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{}
	r := newTestRunner(store, source)

	res := r.Run(context.Background(), uuid.New())

	if res.Status != models.StatusError || res.Error != "Monitor not found" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.TotalListingIDs) != 0 || len(res.ChangedListingIDs) != 0 {
		t.Errorf("expected empty lists, got %+v", res)
	}
	if source.calls != 0 || store.inserts != 0 {
		t.Errorf("expected no side effects, got %d fetches, %d inserts", source.calls, store.inserts)
	}
}

func TestRunMonitorInactive(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, false)
	source := &fakeSource{}
	source.set(searchURL, rawItem("1", "100"))
	r := newTestRunner(store, source)

	res := r.Run(context.Background(), m.ID)

	if res.Status != models.StatusError || res.Error != "Monitor is not active" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if source.calls != 0 || store.inserts != 0 {
		t.Errorf("expected no side effects, got %d fetches, %d inserts", source.calls, store.inserts)
	}
}

func TestRunMonitorEmptyResult(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	r := newTestRunner(store, &fakeSource{})

	res := r.Run(context.Background(), m.ID)

	if res.Status != models.StatusSuccess || res.Error != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.TotalListingIDs == nil || res.ChangedListingIDs == nil {
		t.Errorf("expected empty, non-nil lists")
	}
	if len(res.TotalListingIDs) != 0 || store.inserts != 0 {
		t.Errorf("expected nothing written, got %+v, %d inserts", res, store.inserts)
	}
}

func TestRunMonitorTwoNewListings(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	source := &fakeSource{}
	source.set(searchURL, rawItem("a", "100"), rawItem("b", "200"))
	r := newTestRunner(store, source)

	res := r.Run(context.Background(), m.ID)

	if res.Status != models.StatusSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []string{"a", "b"}
	if !equalIDs(res.TotalListingIDs, want) || !equalIDs(res.ChangedListingIDs, want) {
		t.Errorf("expected %v in both lists, got %+v", want, res)
	}
	if store.inserts != 6 {
		t.Errorf("expected 6 inserts, got %d", store.inserts)
	}
	if l, _ := store.GetListing(context.Background(), "b"); l == nil || l.Price != 200 {
		t.Errorf("expected listing b with price 200, got %+v", l)
	}
	if h := store.historyFor("a"); len(h) != 1 || h[0].Price != 100 {
		t.Errorf("expected one history row for a, got %+v", h)
	}
	matches := store.matchesFor(m.ID)
	if len(matches) != 2 || matches[0].IsNotified {
		t.Errorf("expected two unnotified matches, got %+v", matches)
	}
}

func TestRunMonitorIdempotent(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	source := &fakeSource{}
	source.set(searchURL, rawItem("a", "100"), rawItem("b", "200"))
	r := newTestRunner(store, source)

	first := r.Run(context.Background(), m.ID)
	insertsAfterFirst := store.inserts
	second := r.Run(context.Background(), m.ID)

	if !equalIDs(first.TotalListingIDs, second.TotalListingIDs) {
		t.Errorf("total ids differ: %v vs %v", first.TotalListingIDs, second.TotalListingIDs)
	}
	if len(second.ChangedListingIDs) != 0 {
		t.Errorf("expected nothing changed on second run, got %v", second.ChangedListingIDs)
	}
	if store.inserts != insertsAfterFirst {
		t.Errorf("second run inserted %d rows", store.inserts-insertsAfterFirst)
	}
	if len(store.historyFor("a")) != 1 || len(store.matchesFor(m.ID)) != 2 {
		t.Errorf("expected no new history or matches")
	}
}

func TestRunMonitorPriceChange(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	source := &fakeSource{}
	source.set(searchURL, rawItem("a", "100"))
	r := newTestRunner(store, source)

	r.Run(context.Background(), m.ID)
	before, _ := store.GetListing(context.Background(), "a")

	source.set(searchURL, rawItem("a", "80"))
	res := r.Run(context.Background(), m.ID)

	if !equalIDs(res.ChangedListingIDs, []string{"a"}) {
		t.Fatalf("expected a to be changed, got %+v", res)
	}
	after, _ := store.GetListing(context.Background(), "a")
	if after.Price != 80 {
		t.Errorf("expected price 80, got %d", after.Price)
	}
	if !after.FirstSeenAt.Equal(before.FirstSeenAt) {
		t.Errorf("first seen moved from %v to %v", before.FirstSeenAt, after.FirstSeenAt)
	}
	if !after.LastSeenAt.After(before.LastSeenAt) {
		t.Errorf("expected last seen to advance")
	}
	h := store.historyFor("a")
	if len(h) != 2 || h[1].Price != 80 {
		t.Errorf("expected history [100 80], got %+v", h)
	}
	if len(store.matchesFor(m.ID)) != 1 {
		t.Errorf("expected a single match")
	}
}

func TestRunMonitorPriceUnchangedAdvancesLastSeen(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	source := &fakeSource{}
	source.set(searchURL, rawItem("a", "100"))
	r := newTestRunner(store, source)

	r.Run(context.Background(), m.ID)
	before, _ := store.GetListing(context.Background(), "a")
	r.Run(context.Background(), m.ID)
	after, _ := store.GetListing(context.Background(), "a")

	if !after.LastSeenAt.After(before.LastSeenAt) {
		t.Errorf("expected last seen to advance: %v -> %v", before.LastSeenAt, after.LastSeenAt)
	}
	if len(store.historyFor("a")) != 1 {
		t.Errorf("expected no new history row")
	}
}

func TestRunMonitorCrossMonitorIndependence(t *testing.T) {
	store := newMemStore()
	monA := store.addMonitor("u1", searchURL, true)
	otherURL := "https://www.facebook.com/marketplace/sf/search?query=road%20bike"
	monB := store.addMonitor("u2", otherURL, true)

	source := &fakeSource{}
	source.set(searchURL, rawItem("shared", "500"))
	source.set(otherURL, rawItem("shared", "450"))
	r := newTestRunner(store, source)

	r.Run(context.Background(), monA.ID)
	aMatch := store.matchesFor(monA.ID)[0]
	if _, err := store.MarkMatchNotified(context.Background(), aMatch.ID, "u1"); err != nil {
		t.Fatal(err)
	}

	res := r.Run(context.Background(), monB.ID)
	if !equalIDs(res.ChangedListingIDs, []string{"shared"}) {
		t.Errorf("expected shared listing to change price for B, got %+v", res)
	}

	bMatches := store.matchesFor(monB.ID)
	if len(bMatches) != 1 || bMatches[0].ID == aMatch.ID {
		t.Fatalf("expected B to get its own match, got %+v", bMatches)
	}
	aAfter := store.matchesFor(monA.ID)
	if len(aAfter) != 1 || aAfter[0].ID != aMatch.ID || !aAfter[0].IsNotified {
		t.Errorf("A's match changed: %+v", aAfter)
	}
}

func TestRunMonitorSourceError(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	r := newTestRunner(store, &fakeSource{err: errors.New("actor run FAILED")})

	res := r.Run(context.Background(), m.ID)

	if res.Status != models.StatusError || res.Error != "actor run FAILED" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.TotalListingIDs) != 0 || len(res.ChangedListingIDs) != 0 {
		t.Errorf("expected empty lists")
	}
}

func TestRunMonitorStorageErrorKeepsPartialWrites(t *testing.T) {
	store := newMemStore()
	store.failInsertOnID = "b"
	m := store.addMonitor("u1", searchURL, true)
	source := &fakeSource{}
	source.set(searchURL, rawItem("a", "100"), rawItem("b", "200"), rawItem("c", "300"))
	r := newTestRunner(store, source)

	res := r.Run(context.Background(), m.ID)

	if res.Status != models.StatusError {
		t.Fatalf("expected error, got %+v", res)
	}
	if len(res.TotalListingIDs) != 0 || len(res.ChangedListingIDs) != 0 {
		t.Errorf("expected lists to be reset, got %+v", res)
	}
	if l, _ := store.GetListing(context.Background(), "a"); l == nil {
		t.Errorf("expected listing a to stay committed")
	}
	if l, _ := store.GetListing(context.Background(), "c"); l != nil {
		t.Errorf("listing c should not have been processed")
	}
}

func TestRunMonitorChangedSubsetOfTotal(t *testing.T) {
	store := newMemStore()
	m := store.addMonitor("u1", searchURL, true)
	source := &fakeSource{}
	source.set(searchURL, rawItem("a", "100"), rawItem("b", "200"))
	r := newTestRunner(store, source)
	r.Run(context.Background(), m.ID)

	source.set(searchURL, rawItem("a", "100"), rawItem("b", "150"), rawItem("c", "50"),
		models.RawListing{MarketplaceListingTitle: "no id"})
	res := r.Run(context.Background(), m.ID)

	if !equalIDs(res.TotalListingIDs, []string{"a", "b", "c"}) {
		t.Errorf("unexpected total ids %v", res.TotalListingIDs)
	}
	if !equalIDs(res.ChangedListingIDs, []string{"b", "c"}) {
		t.Errorf("unexpected changed ids %v", res.ChangedListingIDs)
	}
	inTotal := make(map[string]bool)
	for _, id := range res.TotalListingIDs {
		inTotal[id] = true
	}
	for _, id := range res.ChangedListingIDs {
		if !inTotal[id] {
			t.Errorf("changed id %s missing from total", id)
		}
	}
}
