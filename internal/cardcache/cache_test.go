package cardcache

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"cardvault/internal/cards"
)

type fakeResolver struct {
	card  cards.Card
	err   error
	calls int
}

func (f *fakeResolver) ResolveName(_ context.Context, name string, exact bool) (cards.Card, error) {
	f.calls++
	if f.err != nil {
		return cards.Card{}, f.err
	}
	return f.card, nil
}

func bolt() cards.Card {
	return cards.Card{
		ID:              "e3285e6b-3e79-4d7c-bf96-d920f973b122",
		OracleID:        "4457ed35-7c10-48c8-9776-456485fdf070",
		Name:            "Lightning Bolt",
		SetCode:         "lea",
		CollectorNumber: "161",
		ManaCost:        "{R}",
		TypeLine:        "Instant",
		OracleText:      "Lightning Bolt deals 3 damage to any target.",
		Colors:          []string{"R"},
		CMC:             1,
		Layout:          "normal",
		Rarity:          "common",
	}
}

func TestUpsertCoversAllKeySchemes(t *testing.T) {
	cache := New("", nil, nil)

	if err := cache.Upsert(bolt()); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if _, ok := cache.LookupName(context.Background(), "lightning bolt", false); !ok {
		t.Error("name lookup missed")
	}
	if _, ok := cache.LookupID(bolt().ID); !ok {
		t.Error("id lookup missed")
	}
	if _, ok := cache.LookupOracle(bolt().OracleID); !ok {
		t.Error("oracle lookup missed")
	}
	if _, ok := cache.LookupPrint("LEA", "161"); !ok {
		t.Error("print lookup missed")
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	cache := New("", nil, nil)

	if err := cache.Upsert(bolt()); err != nil {
		t.Fatal(err)
	}
	once := cache.Count()

	if err := cache.Upsert(bolt()); err != nil {
		t.Fatal(err)
	}
	if cache.Count() != once {
		t.Errorf("entry count changed after duplicate upsert: %d -> %d", once, cache.Count())
	}
	card, ok := cache.LookupID(bolt().ID)
	if !ok || card.Name != "Lightning Bolt" {
		t.Errorf("record damaged by duplicate upsert: %+v", card)
	}
}

func TestUpsertSkipsAbsentKeys(t *testing.T) {
	cache := New("", nil, nil)
	partial := cards.Card{ID: "abc", Name: "Mystery Card"}

	if err := cache.Upsert(partial); err != nil {
		t.Fatal(err)
	}
	if cache.Count() != 2 {
		t.Errorf("expected only name and id keys, got %d entries", cache.Count())
	}
	if _, ok := cache.LookupOracle(""); ok {
		t.Error("empty oracle key should never resolve")
	}
}

func TestLookupNameCacheBeforeNetwork(t *testing.T) {
	resolver := &fakeResolver{card: bolt()}
	cache := New(filepath.Join(t.TempDir(), "cards.json"), resolver, nil)
	defer cache.Close()

	card, ok := cache.LookupName(context.Background(), "Lightning Bolt", false)
	if !ok || card.Name != "Lightning Bolt" {
		t.Fatalf("first lookup failed: %+v ok=%v", card, ok)
	}
	if resolver.calls != 1 {
		t.Fatalf("resolver calls = %d, want 1", resolver.calls)
	}

	if _, ok := cache.LookupName(context.Background(), "LIGHTNING BOLT", false); !ok {
		t.Fatal("second lookup missed")
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called again on cached name: %d calls", resolver.calls)
	}
}

func TestLookupNameRecoversFromResolverFailure(t *testing.T) {
	resolver := &fakeResolver{err: cards.Wrap(cards.ErrTransient, "scryfall", "named", "connection refused", nil)}
	cache := New("", resolver, nil)

	if _, ok := cache.LookupName(context.Background(), "Shock", false); ok {
		t.Error("transient failure should present as a miss")
	}

	resolver.err = cards.Wrap(cards.ErrNotFound, "scryfall", "named", "no result", nil)
	if _, ok := cache.LookupName(context.Background(), "No Such Card", false); ok {
		t.Error("not-found should present as a miss")
	}
}

func TestFuzzyResultIndexedUnderQueriedName(t *testing.T) {
	resolver := &fakeResolver{card: bolt()}
	cache := New("", resolver, nil)

	if _, ok := cache.LookupName(context.Background(), "lightning bol", false); !ok {
		t.Fatal("fuzzy lookup failed")
	}
	if _, ok := cache.LookupName(context.Background(), "lightning bol", false); !ok {
		t.Fatal("queried name should now be a cache hit")
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", resolver.calls)
	}
}

func TestSearchLocalOrdering(t *testing.T) {
	cache := New("", nil, nil)
	names := []string{"Lightning Shock", "Shockwave", "Shock"}
	for i, name := range names {
		card := cards.Card{ID: string(rune('a' + i)), Name: name}
		if err := cache.Upsert(card); err != nil {
			t.Fatal(err)
		}
	}

	results := cache.SearchLocal("shock", 10)
	got := make([]string, len(results))
	for i, card := range results {
		got[i] = card.Name
	}
	want := []string{"Shock", "Shockwave", "Lightning Shock"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchLocal order = %v, want %v", got, want)
	}
}

func TestSearchLocalHonorsLimit(t *testing.T) {
	cache := New("", nil, nil)
	for _, name := range []string{"Shock", "Shockwave", "Shocker", "Aftershock"} {
		if err := cache.Upsert(cards.Card{ID: name, Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(cache.SearchLocal("shock", 2)); got != 2 {
		t.Errorf("limit ignored: got %d results", got)
	}
	if got := cache.SearchLocal("", 5); got != nil {
		t.Errorf("empty query should return nothing, got %v", got)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")

	first := New(path, nil, nil)
	if err := first.Upsert(bolt()); err != nil {
		t.Fatal(err)
	}
	shock := cards.Card{ID: "shock-1", Name: "Shock", SetCode: "m21", CollectorNumber: "159"}
	if err := first.Upsert(shock); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := New(path, nil, nil)
	defer second.Close()
	if second.Count() != first.Count() {
		t.Errorf("entry count after reload = %d, want %d", second.Count(), first.Count())
	}
	card, ok := second.LookupPrint("lea", "161")
	if !ok {
		t.Fatal("print lookup missed after reload")
	}
	if card.OracleText != bolt().OracleText {
		t.Errorf("record fields lost in round trip: %+v", card)
	}
	if _, ok := second.LookupID("shock-1"); !ok {
		t.Error("second record missing after reload")
	}
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := New(path, nil, nil)
	defer cache.Close()
	if cache.Count() != 0 {
		t.Errorf("corrupt file should yield empty index, got %d entries", cache.Count())
	}
	// The cache must stay writable after a corrupt load.
	if err := cache.Upsert(bolt()); err != nil {
		t.Errorf("Upsert after corrupt load failed: %v", err)
	}
}

func TestLoadToleratesMissingFile(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "absent.json"), nil, nil)
	defer cache.Close()
	if cache.Count() != 0 {
		t.Errorf("missing file should yield empty index, got %d", cache.Count())
	}
}

func TestBulkLoadDefersPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	cache := New(path, nil, nil)
	defer cache.Close()

	if err := cache.Upsert(bolt()); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cache.StartBulkLoad()
	for _, name := range []string{"Shock", "Counterspell", "Dark Ritual"} {
		if err := cache.Upsert(cards.Card{ID: name, Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	during, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(during) {
		t.Error("disk document changed while bulk load was in progress")
	}

	if err := cache.FinishBulkLoad(); err != nil {
		t.Fatalf("FinishBulkLoad failed: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) == string(after) {
		t.Error("flush did not write the bulk records")
	}
}

func TestAbandonedBulkLoadLeavesDiskUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	cache := New(path, nil, nil)
	defer cache.Close()

	if err := cache.Upsert(bolt()); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cache.StartBulkLoad()
	if err := cache.Upsert(cards.Card{ID: "x", Name: "Partial"}); err != nil {
		t.Fatal(err)
	}
	cache.AbandonBulkLoad()

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("abandoned bulk load modified the on-disk document")
	}
}

func TestLastWriteWins(t *testing.T) {
	cache := New("", nil, nil)
	original := bolt()
	if err := cache.Upsert(original); err != nil {
		t.Fatal(err)
	}

	updated := original
	updated.Prices = cards.Prices{USD: "2.49"}
	if err := cache.Upsert(updated); err != nil {
		t.Fatal(err)
	}

	card, _ := cache.LookupID(original.ID)
	if card.Prices.USD != "2.49" {
		t.Errorf("later write did not replace record: %+v", card.Prices)
	}
}
