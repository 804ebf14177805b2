// Package period translates user-facing time-period selectors into
// predicates over (year, month) pairs.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the user-facing period granularity.
type Type string

const (
	All       Type = "All"
	Annual    Type = "Annual"
	Quarterly Type = "Quarterly"
	HalfYear  Type = "Half-Year"
	Monthly   Type = "Monthly"
)

// FloorYear is the oldest year offered in period dropdowns.
const FloorYear = 2020

var ErrInvalidSelector = errors.New("invalid period selector")

var quarterMonths = map[int][3]int{
	1: {1, 2, 3},
	2: {4, 5, 6},
	3: {7, 8, 9},
	4: {10, 11, 12},
}

// Selector is a concrete period choice. The zero value selects everything.
type Selector struct {
	Type    Type `json:"type"`
	Year    int  `json:"year,omitempty"`
	Quarter int  `json:"quarter,omitempty"` // 1-4, Quarterly only
	Half    int  `json:"half,omitempty"`    // 1-2, HalfYear only
	Month   int  `json:"month,omitempty"`   // 1-12, Monthly only
}

// Matches reports whether a record dated (year, month) falls inside the
// selected period.
func (s Selector) Matches(year, month int) bool {
	switch s.Type {
	case Annual:
		return year == s.Year
	case Quarterly:
		if year != s.Year {
			return false
		}
		block, ok := quarterMonths[s.Quarter]
		if !ok {
			return false
		}
		return month == block[0] || month == block[1] || month == block[2]
	case HalfYear:
		if year != s.Year {
			return false
		}
		switch s.Half {
		case 1:
			return month >= 1 && month <= 6
		case 2:
			return month >= 7 && month <= 12
		default:
			return false
		}
	case Monthly:
		return year == s.Year && month == s.Month
	default:
		// All, or unset
		return true
	}
}

// Validate checks that the selector's value fits its type.
func (s Selector) Validate() error {
	switch s.Type {
	case "", All:
		return nil
	case Annual:
		if s.Year == 0 {
			return ErrInvalidSelector
		}
	case Quarterly:
		if s.Year == 0 || s.Quarter < 1 || s.Quarter > 4 {
			return ErrInvalidSelector
		}
	case HalfYear:
		if s.Year == 0 || (s.Half != 1 && s.Half != 2) {
			return ErrInvalidSelector
		}
	case Monthly:
		if s.Year == 0 || s.Month < 1 || s.Month > 12 {
			return ErrInvalidSelector
		}
	default:
		return ErrInvalidSelector
	}
	return nil
}

// Parse builds a Selector from a period type and its display value, the
// format the dropdowns produce: "2024" (Annual), "2024 Q3" (Quarterly),
// "2024 H1" (Half-Year), "2024 July" (Monthly). An empty type selects all.
func Parse(periodType Type, value string) (Selector, error) {
	value = strings.TrimSpace(value)
	switch periodType {
	case "", All:
		return Selector{Type: All}, nil
	case Annual:
		year, err := strconv.Atoi(value)
		if err != nil {
			return Selector{}, fmt.Errorf("%w: annual value %q", ErrInvalidSelector, value)
		}
		return Selector{Type: Annual, Year: year}, nil
	}

	parts := strings.Fields(value)
	if len(parts) != 2 {
		return Selector{}, fmt.Errorf("%w: value %q", ErrInvalidSelector, value)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Selector{}, fmt.Errorf("%w: year %q", ErrInvalidSelector, parts[0])
	}

	switch periodType {
	case Quarterly:
		if len(parts[1]) != 2 || parts[1][0] != 'Q' {
			return Selector{}, fmt.Errorf("%w: quarter %q", ErrInvalidSelector, parts[1])
		}
		quarter := int(parts[1][1] - '0')
		sel := Selector{Type: Quarterly, Year: year, Quarter: quarter}
		return sel, sel.Validate()
	case HalfYear:
		if len(parts[1]) != 2 || parts[1][0] != 'H' {
			return Selector{}, fmt.Errorf("%w: half %q", ErrInvalidSelector, parts[1])
		}
		half := int(parts[1][1] - '0')
		sel := Selector{Type: HalfYear, Year: year, Half: half}
		return sel, sel.Validate()
	case Monthly:
		month, err := monthNumber(parts[1])
		if err != nil {
			return Selector{}, err
		}
		return Selector{Type: Monthly, Year: year, Month: month}, nil
	default:
		return Selector{}, fmt.Errorf("%w: type %q", ErrInvalidSelector, periodType)
	}
}

func monthNumber(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		if n >= 1 && n <= 12 {
			return n, nil
		}
		return 0, fmt.Errorf("%w: month %q", ErrInvalidSelector, name)
	}
	t, err := time.Parse("January", name)
	if err != nil {
		return 0, fmt.Errorf("%w: month %q", ErrInvalidSelector, name)
	}
	return int(t.Month()), nil
}

// Options enumerates the selectable values per period type for UI
// dropdowns: years descend from the current year to FloorYear, and the
// finer granularities are the years crossed with their sub-period lists,
// newest year first.
func Options(now time.Time) map[Type][]string {
	var years []string
	for year := now.Year(); year >= FloorYear; year-- {
		years = append(years, strconv.Itoa(year))
	}

	quarters := []string{"Q1", "Q2", "Q3", "Q4"}
	halves := []string{"H1", "H2"}
	months := []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}

	cross := func(subs []string) []string {
		out := make([]string, 0, len(years)*len(subs))
		for _, year := range years {
			for _, sub := range subs {
				out = append(out, year+" "+sub)
			}
		}
		return out
	}

	return map[Type][]string{
		Annual:    years,
		Quarterly: cross(quarters),
		HalfYear:  cross(halves),
		Monthly:   cross(months),
	}
}
