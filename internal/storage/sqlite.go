package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"reportal/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store backend. Records live in one table with
// the indexed fields as columns and the kind-specific payload as a JSON
// attribute bag, the same shape the portal has always persisted.
type SQLiteStore struct {
	db     *sql.DB
	policy DuplicatePolicy
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string, policy DuplicatePolicy) (*SQLiteStore, error) {
	if !policy.Valid() {
		policy = RejectDuplicates
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, policy: policy}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const recordColumns = `id, kind, zone, year, month, record_data, amount, currency, normalized, submitted_by, submitted_at`

func (s *SQLiteStore) Insert(ctx context.Context, rec core.Record) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	rec.SubmittedAt = time.Now().UTC()

	if core.SchemaFor(rec.Kind).UniquePerPeriod {
		var existingID int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM records WHERE kind = ? AND submitted_by = ? AND year = ? AND month = ?`,
			string(rec.Kind), rec.SubmittedBy, rec.Year, rec.Month,
		).Scan(&existingID)
		switch {
		case err == nil:
			if s.policy == RejectDuplicates {
				return 0, core.ErrDuplicateKey
			}
			if err := s.Update(ctx, existingID, rec.Kind, rec); err != nil {
				return 0, fmt.Errorf("overwrite existing report: %w", err)
			}
			return existingID, nil
		case errors.Is(err, sql.ErrNoRows):
			// fall through to insert
		default:
			return 0, fmt.Errorf("check duplicate report: %w", err)
		}
	}

	payload, err := json.Marshal(rec.Attributes)
	if err != nil {
		return 0, fmt.Errorf("encode attributes: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (kind, zone, year, month, record_data, amount, currency, normalized, submitted_by, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.Zone, rec.Year, rec.Month, string(payload),
		rec.Amount.String(), rec.Currency, rec.Normalized.String(),
		rec.SubmittedBy, rec.SubmittedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		// The partial unique index catches races the pre-check missed.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, core.ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		"id", id,
		"kind", rec.Kind,
		"zone", rec.Zone,
		"normalized", rec.Normalized.String())
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, kind core.Kind, rec core.Record) error {
	payload, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records
		 SET zone = ?, year = ?, month = ?, record_data = ?, amount = ?, currency = ?, normalized = ?, submitted_at = ?
		 WHERE id = ? AND kind = ?`,
		rec.Zone, rec.Year, rec.Month, string(payload),
		rec.Amount.String(), rec.Currency, rec.Normalized.String(),
		time.Now().UTC().Format(time.RFC3339Nano),
		id, string(kind),
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64, kind core.Kind) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = ? AND kind = ?`, id, string(kind))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Record deleted", "id", id, "kind", kind)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64, kind core.Kind) (core.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ? AND kind = ?`,
		id, string(kind))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context, kind core.Kind, f Filter) ([]core.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE kind = ?`
	args := []any{string(kind)}
	if f.Zone != "" {
		query += ` AND zone = ?`
		args = append(args, f.Zone)
	}
	if f.Year != 0 {
		query += ` AND year = ?`
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		query += ` AND month = ?`
		args = append(args, f.Month)
	}
	if f.SubmittedBy != "" {
		query += ` AND submitted_by = ?`
		args = append(args, f.SubmittedBy)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAll loads each requested kind concurrently and stitches the results
// back together in the requested kind order.
func (s *SQLiteStore) ListAll(ctx context.Context, kinds []core.Kind) ([]core.Record, error) {
	results := make([][]core.Record, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			recs, err := s.List(gctx, kind, Filter{})
			if err != nil {
				return fmt.Errorf("list %s: %w", kind, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []core.Record
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var (
		rec         core.Record
		kind        string
		payload     string
		amount      string
		normalized  string
		submittedAt string
	)
	err := row.Scan(&rec.ID, &kind, &rec.Zone, &rec.Year, &rec.Month,
		&payload, &amount, &rec.Currency, &normalized, &rec.SubmittedBy, &submittedAt)
	if err != nil {
		return core.Record{}, err
	}

	rec.Kind = core.Kind(kind)
	if err := json.Unmarshal([]byte(payload), &rec.Attributes); err != nil {
		return core.Record{}, fmt.Errorf("decode attributes for record %d: %w", rec.ID, err)
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Record{}, fmt.Errorf("decode amount for record %d: %w", rec.ID, err)
	}
	if rec.Normalized, err = decimal.NewFromString(normalized); err != nil {
		return core.Record{}, fmt.Errorf("decode normalized amount for record %d: %w", rec.ID, err)
	}
	if rec.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt); err != nil {
		return core.Record{}, fmt.Errorf("decode submitted_at for record %d: %w", rec.ID, err)
	}
	return rec, nil
}
