package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"reportal/internal/amqp"
	"reportal/internal/core"
	"reportal/internal/currency"
	"reportal/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordService orchestrates record writes. Every save normalizes the
// stated amount into the base currency before the record hits the store,
// and record changes are announced over AMQP when a broker is configured.
type RecordService struct {
	store      storage.Store
	rates      *currency.Table
	amqpClient *amqp.Client
}

func NewRecordService(store storage.Store, rates *currency.Table, amqpClient *amqp.Client) *RecordService {
	return &RecordService{
		store:      store,
		rates:      rates,
		amqpClient: amqpClient,
	}
}

// Create normalizes and saves a record, returning its ID and any currency
// warning raised during normalization.
func (s *RecordService) Create(ctx context.Context, rec core.Record) (int64, *currency.Warning, error) {
	if unknown := core.UnknownFields(rec.Kind, rec.Attributes); len(unknown) > 0 {
		slog.WarnContext(ctx, "Record carries unknown fields",
			"kind", rec.Kind, "fields", strings.Join(unknown, ", "))
	}

	warning := s.normalize(&rec)

	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		return 0, warning, fmt.Errorf("save record: %w", err)
	}

	s.publishEvent(ctx, id, rec.Kind, amqp.ActionCreated, rec.Zone)
	return id, warning, nil
}

func (s *RecordService) Update(ctx context.Context, id int64, kind core.Kind, rec core.Record) (*currency.Warning, error) {
	if unknown := core.UnknownFields(kind, rec.Attributes); len(unknown) > 0 {
		slog.WarnContext(ctx, "Record carries unknown fields",
			"kind", kind, "fields", strings.Join(unknown, ", "))
	}
	rec.Kind = kind
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	warning := s.normalize(&rec)

	if err := s.store.Update(ctx, id, kind, rec); err != nil {
		return warning, fmt.Errorf("update record: %w", err)
	}

	s.publishEvent(ctx, id, kind, amqp.ActionUpdated, rec.Zone)
	return warning, nil
}

func (s *RecordService) Delete(ctx context.Context, id int64, kind core.Kind) error {
	rec, err := s.store.Get(ctx, id, kind)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, kind); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	s.publishEvent(ctx, id, kind, amqp.ActionDeleted, rec.Zone)
	return nil
}

func (s *RecordService) Get(ctx context.Context, id int64, kind core.Kind) (core.Record, error) {
	return s.store.Get(ctx, id, kind)
}

func (s *RecordService) List(ctx context.Context, kind core.Kind, f storage.Filter) ([]core.Record, error) {
	return s.store.List(ctx, kind, f)
}

// RowError reports why one row of a bulk upload was rejected.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// BatchResult summarizes a bulk upload. Rows are counted from 1, matching
// the first data row of the uploaded sheet.
type BatchResult struct {
	BatchID  string     `json:"batch_id"`
	Inserted int        `json:"inserted"`
	Errors   []RowError `json:"errors,omitempty"`
}

// IngestBatch saves one parsed workbook of records. The whole batch shares
// a kind, zone and currency. Bad rows are recorded and skipped, good rows
// are saved, so a single typo does not sink the upload.
func (s *RecordService) IngestBatch(ctx context.Context, kind core.Kind, zone, currencyCode, submittedBy string, columns []string, rows [][]string) (BatchResult, error) {
	if !core.ValidKind(kind) {
		return BatchResult{}, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind)
	}
	sc := core.SchemaFor(kind)

	result := BatchResult{BatchID: uuid.New().String()}
	for i, row := range rows {
		rec := core.Record{
			Kind:        kind,
			Zone:        zone,
			Currency:    currencyCode,
			SubmittedBy: submittedBy,
			Attributes:  map[string]any{},
		}

		var rowErr error
		for c, col := range columns {
			val := strings.TrimSpace(row[c])
			if val == "" {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(col)) {
			case "zone":
				rec.Zone = val
			case "year":
				rec.Year, rowErr = parseIntCell(col, val)
			case "month":
				rec.Month, rowErr = parseIntCell(col, val)
			case "currency":
				rec.Currency = val
			default:
				rowErr = setAttribute(&rec, sc, col, val)
			}
			if rowErr != nil {
				break
			}
		}
		if rowErr == nil {
			_, _, rowErr = s.Create(ctx, rec)
		}

		if rowErr != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Reason: rowErr.Error()})
			continue
		}
		result.Inserted++
	}

	slog.InfoContext(ctx, "Batch upload processed",
		"batch_id", result.BatchID,
		"kind", kind,
		"zone", zone,
		"inserted", result.Inserted,
		"rejected", len(result.Errors))
	return result, nil
}

// Renormalize recomputes the normalized amount of every stored record
// against the current rate table and writes back the ones that changed.
// Run it after a rate reload so historical reports use the new rates.
func (s *RecordService) Renormalize(ctx context.Context) (int, error) {
	records, err := s.store.ListAll(ctx, core.Kinds)
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}

	updated := 0
	for _, rec := range records {
		normalized, _ := s.rates.Normalize(rec.StatedAmount(), rec.Currency)
		if normalized.Equal(rec.Normalized) {
			continue
		}
		rec.Normalized = normalized
		if err := s.store.Update(ctx, rec.ID, rec.Kind, rec); err != nil {
			return updated, fmt.Errorf("update record %d: %w", rec.ID, err)
		}
		updated++
	}

	slog.InfoContext(ctx, "Renormalization complete",
		"scanned", len(records),
		"updated", updated)
	return updated, nil
}

func (s *RecordService) normalize(rec *core.Record) *currency.Warning {
	stated := rec.StatedAmount()
	if rec.Amount.IsZero() {
		rec.Amount = stated
	}
	normalized, warning := s.rates.Normalize(stated, rec.Currency)
	rec.Normalized = normalized
	return warning
}

func (s *RecordService) publishEvent(ctx context.Context, id int64, kind core.Kind, action, zone string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishRecordEvent(ctx, id, kind, action, zone); err != nil {
		// The record is already saved, a lost notification is recoverable.
		slog.ErrorContext(ctx, "Failed to publish record event",
			"id", id, "kind", kind, "action", action, "error", err)
	}
}

func (s *RecordService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close record service: %v", errs)
	}
	return nil
}

func setAttribute(rec *core.Record, sc core.Schema, col, val string) error {
	name := strings.ToLower(strings.TrimSpace(col))
	name = strings.ReplaceAll(name, " ", "_")
	if !sc.HasField(name) {
		return fmt.Errorf("unknown column %q", col)
	}

	for _, field := range sc.Fields {
		if field.Name != name {
			continue
		}
		switch field.Type {
		case core.FieldInt:
			n, err := parseIntCell(col, val)
			if err != nil {
				return err
			}
			rec.Attributes[name] = n
		case core.FieldFloat:
			d, err := decimal.NewFromString(strings.ReplaceAll(val, ",", ""))
			if err != nil {
				return fmt.Errorf("column %q: invalid number %q", col, val)
			}
			rec.Attributes[name] = d
		default:
			rec.Attributes[name] = val
		}
		return nil
	}
	return fmt.Errorf("unknown column %q", col)
}

func parseIntCell(col, val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("column %q: invalid integer %q", col, val)
	}
	return n, nil
}
