package scryfall

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cardvault/internal/cards"
)

func newTestClient(t *testing.T, handler http.Handler, interval time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:         server.URL,
		RequestInterval: interval,
		HTTPClient:      server.Client(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client, server
}

func TestNamedCardFuzzyAndExact(t *testing.T) {
	var gotQueries []string
	var mu sync.Mutex
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotQueries = append(gotQueries, r.URL.RawQuery)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"abc","name":"Lightning Bolt","set":"lea","collector_number":"161"}`))
	})
	client, _ := newTestClient(t, handler, time.Millisecond)

	card, err := client.NamedCard(context.Background(), "Lightning Bolt", false)
	if err != nil {
		t.Fatalf("NamedCard failed: %v", err)
	}
	if card.Name != "Lightning Bolt" || card.SetCode != "lea" {
		t.Errorf("unexpected card: %+v", card)
	}

	if _, err := client.NamedCard(context.Background(), "Lightning Bolt", true); err != nil {
		t.Fatalf("exact NamedCard failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(gotQueries) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(gotQueries))
	}
	if gotQueries[0] != "fuzzy=Lightning+Bolt" {
		t.Errorf("first query = %q, want fuzzy", gotQueries[0])
	}
	if gotQueries[1] != "exact=Lightning+Bolt" {
		t.Errorf("second query = %q, want exact", gotQueries[1])
	}
}

func TestNamedCardNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"object":"error"}`, http.StatusNotFound)
	})
	client, _ := newTestClient(t, handler, time.Millisecond)

	_, err := client.NamedCard(context.Background(), "No Such Card", false)
	if !errors.Is(err, cards.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, handler, time.Millisecond)

	_, err := client.CardByID(context.Background(), "abc")
	if !errors.Is(err, cards.ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
}

func TestRequestsAreRateLimited(t *testing.T) {
	var stamps []time.Time
	var mu sync.Mutex
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.Write([]byte(`{"id":"x","name":"Shock"}`))
	})
	interval := 50 * time.Millisecond
	client, _ := newTestClient(t, handler, interval)

	for i := 0; i < 3; i++ {
		if _, err := client.CardByID(context.Background(), "x"); err != nil {
			t.Fatalf("CardByID failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < interval-5*time.Millisecond {
			t.Errorf("requests %d and %d only %v apart, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestSearchPaging(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page param = %q, want 2", got)
		}
		w.Write([]byte(`{"data":[{"id":"a","name":"Shock"}],"total_cards":120,"has_more":true}`))
	})
	client, _ := newTestClient(t, handler, time.Millisecond)

	page, err := client.Search(context.Background(), "lightning", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.TotalCards != 120 || !page.HasMore || len(page.Cards) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestBulkManifestAndDownloadProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200*1024)
	mux := http.NewServeMux()
	mux.HandleFunc("/bulk-data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"type":"default_cards","name":"Default Cards","download_uri":"` + "http://" + r.Host + `/data.json","size":204800}]}`))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})
	client, _ := newTestClient(t, mux, time.Millisecond)

	entries, err := client.BulkManifest(context.Background())
	if err != nil {
		t.Fatalf("BulkManifest failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "default_cards" {
		t.Fatalf("unexpected manifest: %+v", entries)
	}

	var dest bytes.Buffer
	var calls int
	var last int64
	err = client.DownloadBulk(context.Background(), entries[0], &dest, func(received, total int64) {
		calls++
		if received < last {
			t.Errorf("received went backwards: %d -> %d", last, received)
		}
		last = received
	})
	if err != nil {
		t.Fatalf("DownloadBulk failed: %v", err)
	}
	if dest.Len() != len(payload) {
		t.Errorf("downloaded %d bytes, want %d", dest.Len(), len(payload))
	}
	if calls == 0 {
		t.Error("expected at least one progress callback")
	}
	if last != int64(len(payload)) {
		t.Errorf("final received = %d, want %d", last, len(payload))
	}
}
