package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"reportal/internal/core"
	"reportal/internal/currency"
	"reportal/internal/period"
	"reportal/internal/storage"
	"reportal/internal/zones"

	"github.com/shopspring/decimal"
)

// Query describes one aggregation request. The zero value selects every
// record of every kind with the grand total metric.
type Query struct {
	Kinds     []core.Kind      `json:"kinds"`
	Period    period.Selector  `json:"period"`
	Zone      string           `json:"zone"`
	Region    string           `json:"region"`
	Search    string           `json:"search"`
	Metric    string           `json:"metric"`
	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
	TopN      int              `json:"top_n"`
}

// Row pairs a record with the metric value the query extracted from it.
type Row struct {
	Record core.Record     `json:"record"`
	Value  decimal.Decimal `json:"value"`
}

type Summary struct {
	Count   int             `json:"count"`
	Sum     decimal.Decimal `json:"sum"`
	Average decimal.Decimal `json:"average"`
}

type Result struct {
	Rows     []Row              `json:"rows"`
	Summary  Summary            `json:"summary"`
	Warnings []currency.Warning `json:"warnings,omitempty"`
}

// Engine runs aggregation queries against the record store. Monetary
// values are renormalized against the live rate table on every query so a
// rate reload takes effect without a backfill.
type Engine struct {
	store storage.Store
	rates *currency.Table
	zones *zones.Map
}

func NewEngine(store storage.Store, rates *currency.Table, zmap *zones.Map) *Engine {
	return &Engine{store: store, rates: rates, zones: zmap}
}

// Aggregate applies the filter stages in a fixed order. Loading happens
// first, then metric extraction, then period, zone or region, free text
// and amount range narrowing, then the summary over whatever survived.
func (e *Engine) Aggregate(ctx context.Context, q Query) (Result, error) {
	kinds := q.Kinds
	if len(kinds) == 0 {
		kinds = core.Kinds
	}
	for _, kind := range kinds {
		if !core.ValidKind(kind) {
			return Result{}, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind)
		}
		if !core.SchemaFor(kind).HasMetric(q.Metric) {
			return Result{}, fmt.Errorf("%w: %q for kind %s", core.ErrInvalidMetric, q.Metric, kind)
		}
	}
	if err := q.Period.Validate(); err != nil {
		return Result{}, err
	}

	records, err := e.store.ListAll(ctx, kinds)
	if err != nil {
		return Result{}, fmt.Errorf("load records: %w", err)
	}

	var (
		rows     []Row
		warnings []currency.Warning
		warned   = map[string]bool{}
	)
	for _, rec := range records {
		value, warning := e.metricValue(rec, q.Metric)
		if warning != nil && !warned[warning.Currency] {
			warned[warning.Currency] = true
			warnings = append(warnings, *warning)
		}

		if !q.Period.Matches(rec.Year, rec.Month) {
			continue
		}
		if q.Zone != "" && rec.Zone != q.Zone {
			continue
		}
		if q.Region != "" {
			reg, ok := e.zones.Lookup(rec.Zone)
			if !ok || reg != q.Region {
				continue
			}
		}
		if q.Search != "" && !matchesSearch(rec, q.Search) {
			continue
		}
		if q.MinAmount != nil && value.LessThan(*q.MinAmount) {
			continue
		}
		if q.MaxAmount != nil && value.GreaterThan(*q.MaxAmount) {
			continue
		}
		rows = append(rows, Row{Record: rec, Value: value})
	}

	return Result{
		Rows:     rows,
		Summary:  summarize(rows),
		Warnings: warnings,
	}, nil
}

// Rank runs the query and keeps only the top N rows by metric value.
// Ordering is stable, so records that tie keep their load order. N is
// clamped to the number of surviving rows and never drops below one.
func (e *Engine) Rank(ctx context.Context, q Query) (Result, error) {
	res, err := e.Aggregate(ctx, q)
	if err != nil {
		return Result{}, err
	}
	if len(res.Rows) == 0 {
		return res, nil
	}

	sort.SliceStable(res.Rows, func(i, j int) bool {
		return res.Rows[i].Value.GreaterThan(res.Rows[j].Value)
	})

	n := q.TopN
	if n < 1 {
		n = 1
	}
	if n > len(res.Rows) {
		n = len(res.Rows)
	}
	res.Rows = res.Rows[:n]
	res.Summary = summarize(res.Rows)
	return res, nil
}

func (e *Engine) metricValue(rec core.Record, metric string) (decimal.Decimal, *currency.Warning) {
	if metric == "" || metric == core.MetricGrandTotal {
		return e.rates.Normalize(rec.StatedAmount(), rec.Currency)
	}
	return rec.NumericAttr(metric), nil
}

func matchesSearch(rec core.Record, term string) bool {
	sc := core.SchemaFor(rec.Kind)
	for _, field := range sc.SearchFields {
		if containsFold(rec.Attr(field), term) {
			return true
		}
	}
	return containsFold(rec.Zone, term) || containsFold(rec.SubmittedBy, term)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func summarize(rows []Row) Summary {
	s := Summary{Count: len(rows)}
	if s.Count == 0 {
		return s
	}
	for _, row := range rows {
		s.Sum = s.Sum.Add(row.Value)
	}
	s.Average = s.Sum.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	return s
}
