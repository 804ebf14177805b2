package storage

import (
	"context"
	"errors"
	"testing"

	"reportal/internal/core"
)

func partnerRecord(zone, name string) core.Record {
	return core.Record{
		Kind: core.KindAdultPartner,
		Zone: zone,
		Attributes: map[string]any{
			"first_name": name,
		},
	}
}

func reportRecord(submitter string, year, month int) core.Record {
	return core.Record{
		Kind:        core.KindPeriodicReport,
		SubmittedBy: submitter,
		Year:        year,
		Month:       month,
		Attributes: map[string]any{
			"souls_won": 10,
		},
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RejectDuplicates)

	id, err := store.Insert(ctx, partnerRecord("Zone A", "Ada"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 1 {
		t.Fatalf("first id should be 1, got %d", id)
	}

	rec, err := store.Get(ctx, id, core.KindAdultPartner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Attr("first_name") != "Ada" {
		t.Fatalf("payload lost: %+v", rec.Attributes)
	}
	if rec.SubmittedAt.IsZero() {
		t.Fatal("submitted_at should be stamped")
	}

	upd := partnerRecord("Zone B", "Ada B")
	if err := store.Update(ctx, id, core.KindAdultPartner, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ = store.Get(ctx, id, core.KindAdultPartner)
	if rec.Zone != "Zone B" {
		t.Fatalf("zone not updated: %s", rec.Zone)
	}

	if err := store.Delete(ctx, id, core.KindAdultPartner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, id, core.KindAdultPartner); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Delete(ctx, id, core.KindAdultPartner); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("double delete should be not found, got %v", err)
	}
}

func TestMemoryStoreIDsPerKind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RejectDuplicates)

	a, _ := store.Insert(ctx, partnerRecord("Z", "one"))
	b, _ := store.Insert(ctx, reportRecord("admin", 2024, 1))
	if a != 1 || b != 1 {
		t.Fatalf("kinds should have independent sequences, got %d and %d", a, b)
	}
}

func TestMemoryStoreDuplicatePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("reject", func(t *testing.T) {
		store := NewMemoryStore(RejectDuplicates)
		if _, err := store.Insert(ctx, reportRecord("admin", 2024, 6)); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		if _, err := store.Insert(ctx, reportRecord("admin", 2024, 6)); !errors.Is(err, core.ErrDuplicateKey) {
			t.Fatalf("expected duplicate key, got %v", err)
		}
		// Same submitter, different month is fine.
		if _, err := store.Insert(ctx, reportRecord("admin", 2024, 7)); err != nil {
			t.Fatalf("different period: %v", err)
		}
		// Different submitter, same period is fine.
		if _, err := store.Insert(ctx, reportRecord("other", 2024, 6)); err != nil {
			t.Fatalf("different submitter: %v", err)
		}
	})

	t.Run("overwrite keeps the original id", func(t *testing.T) {
		store := NewMemoryStore(OverwriteDuplicates)
		first, _ := store.Insert(ctx, reportRecord("admin", 2024, 6))

		second := reportRecord("admin", 2024, 6)
		second.Attributes["souls_won"] = 99
		id, err := store.Insert(ctx, second)
		if err != nil {
			t.Fatalf("overwrite insert: %v", err)
		}
		if id != first {
			t.Fatalf("overwrite should reuse id %d, got %d", first, id)
		}

		rec, _ := store.Get(ctx, first, core.KindPeriodicReport)
		if !rec.NumericAttr("souls_won").Equal(core.CoerceDecimal(99)) {
			t.Fatalf("payload not replaced: %v", rec.Attributes["souls_won"])
		}

		recs, _ := store.List(ctx, core.KindPeriodicReport, Filter{})
		if len(recs) != 1 {
			t.Fatalf("expected a single report, got %d", len(recs))
		}
	})

	t.Run("partner kinds are never deduplicated", func(t *testing.T) {
		store := NewMemoryStore(RejectDuplicates)
		store.Insert(ctx, partnerRecord("Z", "same"))
		if _, err := store.Insert(ctx, partnerRecord("Z", "same")); err != nil {
			t.Fatalf("identical partner rows should both store: %v", err)
		}
	})
}

func TestMemoryStoreListFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RejectDuplicates)

	a := partnerRecord("Zone A", "first")
	a.Year, a.Month = 2024, 1
	b := partnerRecord("Zone B", "second")
	b.Year, b.Month = 2024, 2
	c := partnerRecord("Zone A", "third")
	c.Year, c.Month = 2023, 1
	for _, rec := range []core.Record{a, b, c} {
		if _, err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	zoneA, _ := store.List(ctx, core.KindAdultPartner, Filter{Zone: "Zone A"})
	if len(zoneA) != 2 {
		t.Fatalf("zone filter: got %d", len(zoneA))
	}
	if zoneA[0].Attr("first_name") != "first" {
		t.Fatal("list should preserve insertion order")
	}

	y2024, _ := store.List(ctx, core.KindAdultPartner, Filter{Year: 2024})
	if len(y2024) != 2 {
		t.Fatalf("year filter: got %d", len(y2024))
	}

	both, _ := store.List(ctx, core.KindAdultPartner, Filter{Zone: "Zone A", Year: 2024})
	if len(both) != 1 || both[0].Attr("first_name") != "first" {
		t.Fatalf("combined filter: got %d", len(both))
	}
}

func TestMemoryStoreListAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RejectDuplicates)
	store.Insert(ctx, reportRecord("admin", 2024, 1))
	store.Insert(ctx, partnerRecord("Z", "Ada"))

	all, err := store.ListAll(ctx, []core.Kind{core.KindAdultPartner, core.KindPeriodicReport})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d records", len(all))
	}
	// Grouped in requested kind order, not insertion order.
	if all[0].Kind != core.KindAdultPartner || all[1].Kind != core.KindPeriodicReport {
		t.Fatalf("wrong grouping: %s, %s", all[0].Kind, all[1].Kind)
	}
}
