package services

import (
	"context"
	"testing"

	"reportal/internal/core"
	"reportal/internal/currency"
	"reportal/internal/storage"

	"github.com/shopspring/decimal"
)

func newTestService() (*RecordService, *storage.MemoryStore) {
	store := storage.NewMemoryStore(storage.RejectDuplicates)
	return NewRecordService(store, currency.NewTable(nil), nil), store
}

func TestCreateNormalizesOnSave(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	id, warning, err := svc.Create(ctx, core.Record{
		Kind:     core.KindAdultPartner,
		Zone:     "Zone A",
		Currency: "NGN",
		Attributes: map[string]any{
			"first_name":  "Ada",
			"total_teevo": 100,
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if warning != nil {
		t.Fatalf("unexpected warning: %s", warning)
	}

	rec, err := svc.Get(ctx, id, core.KindAdultPartner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// 100 NGN at 1750 per USD is 0.06 ESPEES.
	if !rec.Normalized.Equal(decimal.RequireFromString("0.06")) {
		t.Fatalf("normalized = %s", rec.Normalized)
	}
	if !rec.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("stated amount = %s", rec.Amount)
	}
}

func TestCreateUnknownCurrencyWarns(t *testing.T) {
	svc, _ := newTestService()

	_, warning, err := svc.Create(context.Background(), core.Record{
		Kind:     core.KindAdultPartner,
		Zone:     "Zone A",
		Currency: "XYZ",
		Amount:   decimal.NewFromInt(50),
		Attributes: map[string]any{
			"first_name": "Ada",
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if warning == nil || warning.Currency != "XYZ" {
		t.Fatalf("expected pass-through warning, got %v", warning)
	}
}

func TestUpdateRenormalizes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	id, _, err := svc.Create(ctx, core.Record{
		Kind:     core.KindAdultPartner,
		Zone:     "Zone A",
		Currency: "USD",
		Amount:   decimal.NewFromInt(10),
		Attributes: map[string]any{
			"first_name": "Ada",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Update(ctx, id, core.KindAdultPartner, core.Record{
		Zone:     "Zone A",
		Currency: "NGN",
		Amount:   decimal.NewFromInt(3500),
		Attributes: map[string]any{
			"first_name": "Ada",
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	rec, _ := svc.Get(ctx, id, core.KindAdultPartner)
	if !rec.Normalized.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("normalized = %s, want 2", rec.Normalized)
	}
}

func TestIngestBatch(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	columns := []string{"first_name", "surname", "total_teevo", "age"}
	rows := [][]string{
		{"Ada", "L", "100", "9"},
		{"Bob", "M", "not-a-number", "10"},
		{"Cle", "N", "200", ""},
	}

	res, err := svc.IngestBatch(ctx, core.KindChildPartner, "Zone A", "NGN", "uploader", columns, rows)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.BatchID == "" {
		t.Fatal("batch id missing")
	}
	if res.Inserted != 2 {
		t.Fatalf("inserted = %d", res.Inserted)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 2 {
		t.Fatalf("errors = %+v", res.Errors)
	}

	records, err := svc.List(ctx, core.KindChildPartner, storage.Filter{Zone: "Zone A"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("stored %d records", len(records))
	}
	first := records[0]
	if first.Currency != "NGN" || first.SubmittedBy != "uploader" {
		t.Fatalf("batch fields not applied: %+v", first)
	}
	if !first.Normalized.Equal(decimal.RequireFromString("0.06")) {
		t.Fatalf("normalized = %s", first.Normalized)
	}

	t.Run("unknown column rejects the row", func(t *testing.T) {
		res, err := svc.IngestBatch(ctx, core.KindChildPartner, "Zone A", "NGN", "uploader",
			[]string{"first_name", "shoe_size"}, [][]string{{"Dee", "42"}})
		if err != nil {
			t.Fatal(err)
		}
		if res.Inserted != 0 || len(res.Errors) != 1 {
			t.Fatalf("got %+v", res)
		}
	})

	t.Run("unknown kind fails the batch", func(t *testing.T) {
		if _, err := svc.IngestBatch(ctx, "mystery", "Zone A", "NGN", "u", columns, rows); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRenormalize(t *testing.T) {
	store := storage.NewMemoryStore(storage.RejectDuplicates)
	rates := currency.NewTable(nil)
	svc := NewRecordService(store, rates, nil)
	ctx := context.Background()

	id, _, err := svc.Create(ctx, core.Record{
		Kind:     core.KindAdultPartner,
		Zone:     "Zone A",
		Currency: "NGN",
		Amount:   decimal.NewFromInt(1750),
		Attributes: map[string]any{
			"first_name": "Ada",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Halve the naira rate and renormalize: 1750/875 = 2.
	rates.SetRates(map[string]decimal.Decimal{
		"NGN": decimal.NewFromInt(875),
	})

	updated, err := svc.Renormalize(ctx)
	if err != nil {
		t.Fatalf("renormalize: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d", updated)
	}

	rec, _ := svc.Get(ctx, id, core.KindAdultPartner)
	if !rec.Normalized.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("normalized = %s", rec.Normalized)
	}

	// A second pass with unchanged rates touches nothing.
	updated, err = svc.Renormalize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 0 {
		t.Fatalf("second pass updated %d", updated)
	}
}

func TestServiceClose(t *testing.T) {
	svc := NewRecordService(nil, currency.NewTable(nil), nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("close with nil components: %v", err)
	}
}
