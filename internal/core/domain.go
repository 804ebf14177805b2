package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies one of the closed set of record types the portal accepts.
type Kind string

const (
	KindAdultPartner      Kind = "adult_partner"
	KindChildPartner      Kind = "child_partner"
	KindTeenagerPartner   Kind = "teenager_partner"
	KindExternalPartner   Kind = "external_partner"
	KindChurchSponsorship Kind = "church_sponsorship"
	KindCellRecord        Kind = "cell_record"
	KindRORRecord         Kind = "ror_record"
	KindPeriodicReport    Kind = "periodic_report"
)

// Kinds lists every record kind in a fixed order. Callers that aggregate
// "all records" iterate this slice so results are deterministic.
var Kinds = []Kind{
	KindAdultPartner,
	KindChildPartner,
	KindTeenagerPartner,
	KindExternalPartner,
	KindChurchSponsorship,
	KindCellRecord,
	KindRORRecord,
	KindPeriodicReport,
}

// Church sponsorship sub-variants, stored in the church_category attribute.
const (
	ChurchCategoryA = "Category A"
	ChurchCategoryB = "Category B"
	ChurchCategoryC = "Church"
)

var (
	ErrUnknownKind   = errors.New("unknown record kind")
	ErrDuplicateKey  = errors.New("duplicate record key")
	ErrNotFound      = errors.New("record not found")
	ErrInvalidMetric = errors.New("invalid metric field")
	ErrMissingZone   = errors.New("zone is required")
	ErrMissingPeriod = errors.New("reporting period is required")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Record is the unit of storage: a small set of indexed fields plus a
// kind-specific attribute bag. Monetary kinds carry the stated amount in the
// submitted currency and its ESPEES equivalent; Normalized is always derived
// at save time, never entered directly.
type Record struct {
	ID          int64           `json:"id"`
	Kind        Kind            `json:"kind"`
	Zone        string          `json:"zone,omitempty"`
	Year        int             `json:"year,omitempty"`
	Month       int             `json:"month,omitempty"`
	Attributes  map[string]any  `json:"attributes"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Normalized  decimal.Decimal `json:"normalized"`
	SubmittedBy string          `json:"submitted_by,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// ValidKind reports whether k is part of the closed kind enumeration.
func ValidKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Validate checks the indexed fields a record must carry before it can be
// stored. Attribute-bag contents are checked separately against the kind
// schema; extra or missing payload keys are a data-quality warning there,
// not a hard error here.
func (r Record) Validate() error {
	if !ValidKind(r.Kind) {
		return ErrUnknownKind
	}
	sc := SchemaFor(r.Kind)
	if strings.TrimSpace(r.Zone) == "" && sc.ZoneRequired {
		return ErrMissingZone
	}
	if sc.RequiresPeriod && (r.Year == 0 || r.Month < 1 || r.Month > 12) {
		return ErrMissingPeriod
	}
	if r.Month != 0 && (r.Month < 1 || r.Month > 12) {
		return ErrMissingPeriod
	}
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Attr returns a string attribute, empty when absent or of another type.
func (r Record) Attr(name string) string {
	if r.Attributes == nil {
		return ""
	}
	if s, ok := r.Attributes[name].(string); ok {
		return s
	}
	return ""
}

// NumericAttr coerces an attribute to a decimal, falling back to zero for
// missing or non-numeric values. The lenient fallback mirrors how uploaded
// payloads are read: absent fields count as zero rather than aborting.
func (r Record) NumericAttr(name string) decimal.Decimal {
	if r.Attributes == nil {
		return decimal.Zero
	}
	return CoerceDecimal(r.Attributes[name])
}

// CoerceDecimal converts scalar attribute values to a decimal, returning
// zero for anything it cannot interpret as a number.
func CoerceDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case float64:
		return decimal.NewFromFloat(n)
	case float32:
		return decimal.NewFromFloat32(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// StatedAmount returns the record's financial total in its submitted
// currency. When the kind sums component fields (partner kinds) and no
// explicit amount was supplied, the components are added up here.
func (r Record) StatedAmount() decimal.Decimal {
	if !r.Amount.IsZero() {
		return r.Amount
	}
	sc := SchemaFor(r.Kind)
	total := decimal.Zero
	for _, f := range sc.AmountFields {
		total = total.Add(r.NumericAttr(f))
	}
	return total
}
