package export

import (
	"fmt"
	"strconv"

	"reportal/internal/aggregate"
	"reportal/internal/core"
)

// FromResult flattens an aggregation result into a renderable document.
// When every row shares one kind the kind's attribute fields become extra
// columns, so a single-kind export carries the full payload of each
// record. Mixed-kind exports stick to the common columns.
func FromResult(title string, res aggregate.Result) Document {
	columns := []string{"Kind", "Zone", "Year", "Month", "Submitted By", "Currency", "Amount", "Value"}

	var extra []core.Field
	if kind, ok := singleKind(res.Rows); ok {
		extra = core.SchemaFor(kind).Fields
		for _, field := range extra {
			columns = append(columns, field.Name)
		}
	}

	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec := row.Record
		cells := []string{
			string(rec.Kind),
			rec.Zone,
			strconv.Itoa(rec.Year),
			strconv.Itoa(rec.Month),
			rec.SubmittedBy,
			rec.Currency,
			rec.Amount.String(),
			row.Value.String(),
		}
		for _, field := range extra {
			cells = append(cells, attrString(rec, field))
		}
		rows = append(rows, cells)
	}

	summary := res.Summary
	return Document{
		Sheet:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &summary,
	}
}

func singleKind(rows []aggregate.Row) (core.Kind, bool) {
	if len(rows) == 0 {
		return "", false
	}
	kind := rows[0].Record.Kind
	for _, row := range rows[1:] {
		if row.Record.Kind != kind {
			return "", false
		}
	}
	return kind, true
}

func attrString(rec core.Record, field core.Field) string {
	val, ok := rec.Attributes[field.Name]
	if !ok || val == nil {
		return ""
	}
	switch field.Type {
	case core.FieldInt, core.FieldFloat:
		return rec.NumericAttr(field.Name).String()
	default:
		return fmt.Sprint(val)
	}
}
