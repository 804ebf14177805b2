package core

import "sort"

// FieldType describes the expected scalar type of an attribute field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
)

// Field is one entry of a kind's attribute schema.
type Field struct {
	Name string
	Type FieldType
}

// MetricGrandTotal selects the normalized ESPEES total instead of a raw
// attribute when ranking or summarizing.
const MetricGrandTotal = "grand_total"

// Schema describes the fixed field list of a record kind: which attributes
// are expected, which monetary components sum into the stated amount, which
// string fields free-text search covers, and which numeric fields can serve
// as a ranking metric.
type Schema struct {
	Kind           Kind
	Fields         []Field
	AmountFields   []string
	SearchFields   []string
	MetricFields   []string
	HasAmount      bool
	ZoneRequired   bool
	RequiresPeriod bool
	// UniquePerPeriod kinds enforce one submission per
	// (submitter, year, month) under the configured duplicate policy.
	UniquePerPeriod bool
}

// HasMetric reports whether name is a valid ranking metric for the kind.
func (s Schema) HasMetric(name string) bool {
	if name == "" || name == MetricGrandTotal {
		return s.HasAmount || name == ""
	}
	for _, m := range s.MetricFields {
		if m == name {
			return true
		}
	}
	return false
}

// HasField reports whether name is part of the kind's known field list.
func (s Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

var partnerAmountFields = []string{
	"total_wonder_challenge",
	"total_rhapsody_languages",
	"total_kiddies_products",
	"total_teevo",
	"total_braille_nolb",
	"total_youth_aglow",
	"total_local_distribution",
	"total_subscriptions_dubais",
}

var externalAmountFields = []string{
	"rhapsody_subscriptions_dubais",
	"sponsorship_retail_center",
	"translators_network_international",
	"rhapsody_influencers_network",
	"rim",
}

var partnerIdentityFields = []Field{
	{"title", FieldString},
	{"first_name", FieldString},
	{"surname", FieldString},
	{"kingschat_phone", FieldString},
	{"email", FieldString},
}

var partnerSearchFields = []string{
	"title", "first_name", "surname", "email", "church", "group_name", "kingschat_phone",
}

func partnerSchema(kind Kind, extra ...Field) Schema {
	fields := append([]Field{}, partnerIdentityFields...)
	fields = append(fields,
		Field{"church", FieldString},
		Field{"group_name", FieldString},
	)
	fields = append(fields, extra...)
	for _, f := range partnerAmountFields {
		fields = append(fields, Field{f, FieldFloat})
	}
	return Schema{
		Kind:         kind,
		Fields:       fields,
		AmountFields: partnerAmountFields,
		SearchFields: partnerSearchFields,
		MetricFields: partnerAmountFields,
		HasAmount:    true,
		ZoneRequired: true,
	}
}

var schemas = map[Kind]Schema{
	KindAdultPartner: partnerSchema(KindAdultPartner),
	KindChildPartner: partnerSchema(KindChildPartner,
		Field{"age", FieldInt},
		Field{"birthday", FieldString},
	),
	KindTeenagerPartner: partnerSchema(KindTeenagerPartner,
		Field{"birthday", FieldString},
	),
	KindExternalPartner: {
		Kind: KindExternalPartner,
		Fields: append(append([]Field{}, partnerIdentityFields...),
			Field{"rhapsody_subscriptions_dubais", FieldFloat},
			Field{"sponsorship_retail_center", FieldFloat},
			Field{"translators_network_international", FieldFloat},
			Field{"rhapsody_influencers_network", FieldFloat},
			Field{"rim", FieldFloat},
		),
		AmountFields: externalAmountFields,
		SearchFields: []string{"title", "first_name", "surname", "email", "kingschat_phone"},
		MetricFields: externalAmountFields,
		HasAmount:    true,
		ZoneRequired: true,
	},
	KindChurchSponsorship: {
		Kind: KindChurchSponsorship,
		Fields: []Field{
			{"group_name", FieldString},
			{"church_name", FieldString},
			{"church_pastor", FieldString},
			{"kingschat_phone", FieldString},
			{"email", FieldString},
			{"church_category", FieldString},
			{"total_quantity", FieldInt},
			{"kiddies_products", FieldInt},
			{"teevo", FieldInt},
			{"braille_nolb", FieldInt},
			{"languages", FieldInt},
			{"youth_aglow", FieldInt},
		},
		SearchFields: []string{
			"church_name", "church_pastor", "group_name", "email", "kingschat_phone",
		},
		MetricFields: []string{
			"total_quantity", "kiddies_products", "teevo", "braille_nolb",
			"languages", "youth_aglow",
		},
		HasAmount:    true,
		ZoneRequired: true,
	},
	KindCellRecord: {
		Kind: KindCellRecord,
		Fields: []Field{
			{"cell_name", FieldString},
			{"cell_leader", FieldString},
			{"kingschat_phone", FieldString},
			{"email", FieldString},
			{"church", FieldString},
			{"group_name", FieldString},
			{"total_quantity", FieldInt},
			{"total_amount_received", FieldFloat},
			{"kiddies_products", FieldInt},
			{"teevo", FieldInt},
			{"braille", FieldInt},
			{"languages", FieldInt},
			{"youth_aglow", FieldInt},
		},
		SearchFields: []string{
			"cell_name", "cell_leader", "church", "group_name", "email", "kingschat_phone",
		},
		MetricFields: []string{
			"total_quantity", "total_amount_received", "kiddies_products",
			"teevo", "braille", "languages", "youth_aglow",
		},
		HasAmount:    true,
		ZoneRequired: true,
	},
	KindRORRecord: {
		Kind: KindRORRecord,
		Fields: []Field{
			{"group_name", FieldString},
			{"reachout_world_programs", FieldInt},
			{"rhapathon", FieldInt},
			{"reachout_world_nations", FieldInt},
			{"say_yes_to_kids", FieldInt},
			{"teevolution", FieldInt},
			{"youth_aglow", FieldInt},
			{"no_one_left_behind", FieldInt},
			{"penetrating_truth", FieldInt},
			{"penetrating_languages", FieldInt},
			{"adopt_a_street", FieldInt},
			{"total_outreaches", FieldInt},
		},
		SearchFields: []string{"group_name"},
		MetricFields: []string{
			"total_outreaches", "reachout_world_programs", "rhapathon",
			"reachout_world_nations", "say_yes_to_kids", "teevolution",
			"youth_aglow", "no_one_left_behind", "penetrating_truth",
			"penetrating_languages", "adopt_a_street",
		},
		HasAmount:    true,
		ZoneRequired: true,
	},
	KindPeriodicReport: {
		Kind:   KindPeriodicReport,
		Fields: periodicReportFields(),
		SearchFields: []string{
			// Periodic reports carry no name fields; search covers provenance.
		},
		MetricFields:    periodicReportMetrics,
		RequiresPeriod:  true,
		UniquePerPeriod: true,
		// Admin-entered aggregate reports may omit a zone.
		ZoneRequired: false,
	},
}

var periodicReportMetrics = []string{
	"wonder_alerts",
	"sytk_alerts",
	"rrm",
	"total_distribution",
	"souls_won",
	"rhapsody_outreaches",
	"rhapsody_cells",
	"new_churches",
	"new_partners_enlisted",
	"lingual_cells",
	"language_churches",
	"languages_sponsored",
	"distribution_centers",
	"groups_selected_1m",
	"groups_achieved_1m",
	"groups_achieved_500k",
	"groups_achieved_250k",
	"groups_achieved_100k",
	"prayer_programs",
	"partner_programs",
	"external_ministers",
	"iseed_daily_partners",
	"language_ambassadors",
}

func periodicReportFields() []Field {
	fields := make([]Field, 0, len(periodicReportMetrics))
	for _, m := range periodicReportMetrics {
		fields = append(fields, Field{m, FieldInt})
	}
	return fields
}

// SchemaFor returns the schema descriptor of a kind. Unknown kinds return a
// zero schema; callers gate on ValidKind first.
func SchemaFor(kind Kind) Schema {
	return schemas[kind]
}

// UnknownFields returns attribute keys not present in the kind's field list.
// Extra keys pass through storage unindexed; surfacing them is a
// data-quality warning for the caller, never a rejection.
func UnknownFields(kind Kind, attributes map[string]any) []string {
	sc := SchemaFor(kind)
	var unknown []string
	for name := range attributes {
		if !sc.HasField(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}
