// Package reference resolves foreign-key columns between the sheets of a workbook.
//
// A column named <id_field>_(<sheet_key>) references the id column of the sheet with
// that key. With Rules.RolePrefix a role may precede the id field, so that
// customer_id_(Customers) and billing_id_(Customers) can coexist in one sheet; without
// it only the exact id field is accepted.
package reference

import (
	"strings"

	"sheetbridge/internal/domain/registry"
	"sheetbridge/internal/domain/table"
)

// ForeignKey describes one recognized foreign-key column.
type ForeignKey struct {
	Column       string `json:"column"`
	IDField      string `json:"id_field"`
	TargetKey    string `json:"target"`
	Role         string `json:"role,omitempty"`
	HelperColumn string `json:"helper_column"`
}

// Unrecognized reasons.
const (
	ReasonUnknownTarget   = "unknown_target"
	ReasonIDFieldMismatch = "id_field_mismatch"
)

// Unrecognized is a column that looks like a foreign key but was not accepted.
type Unrecognized struct {
	Sheet   string `json:"sheet"`
	Column  string `json:"column"`
	Target  string `json:"target"`
	Reason  string `json:"reason"`
	IDField string `json:"expected_id_field,omitempty"`
}

// Rules control how foreign-key columns are recognized and how helper columns are named.
type Rules struct {
	HelperPrefix string
	RolePrefix   bool
}

// DefaultRules uses the "_" helper prefix and accepts role prefixes.
func DefaultRules() Rules {
	return Rules{HelperPrefix: "_", RolePrefix: true}
}

func (r Rules) isHelper(col string) bool {
	return r.HelperPrefix != "" && strings.HasPrefix(col, r.HelperPrefix)
}

// HelperColumnName returns the label column name for a reference to entry.
func HelperColumnName(prefix, role string, entry registry.Entry) string {
	if role != "" {
		return prefix + role + "_" + entry.SheetKey + "_" + entry.LabelField
	}
	return prefix + entry.SheetKey + "_" + entry.LabelField
}

// matchField accepts field when it equals the target id field or, with rolePrefix,
// ends in _<id field>.
func matchField(field, idField string, rolePrefix bool) (role string, ok bool) {
	if field == idField {
		return "", true
	}
	if !rolePrefix {
		return "", false
	}
	suffix := "_" + idField
	if strings.HasSuffix(field, suffix) && len(field) > len(suffix) {
		return strings.TrimSuffix(field, suffix), true
	}
	return "", false
}

// DetectForeignKeys lists the foreign-key columns of t in column order.
// Columns pointing at unknown sheet keys or using another id field are skipped;
// DetectUnrecognized reports them. Helper columns are never inspected.
func DetectForeignKeys(t *table.Table, reg *registry.Registry, rules Rules) []ForeignKey {
	var out []ForeignKey
	for _, top := range t.TopNames() {
		if rules.isHelper(top) {
			continue
		}
		field, key, ok := registry.ParseForeignKeyName(top)
		if !ok {
			continue
		}
		entry, ok := reg.Get(key)
		if !ok {
			continue
		}
		role, ok := matchField(field, entry.IDField, rules.RolePrefix)
		if !ok {
			continue
		}
		out = append(out, ForeignKey{
			Column:       top,
			IDField:      entry.IDField,
			TargetKey:    key,
			Role:         role,
			HelperColumn: HelperColumnName(rules.HelperPrefix, role, entry),
		})
	}
	return out
}

// DetectUnrecognized lists the columns of sheet that use the foreign-key syntax but
// were skipped by DetectForeignKeys.
func DetectUnrecognized(sheet string, t *table.Table, reg *registry.Registry, rules Rules) []Unrecognized {
	var out []Unrecognized
	for _, top := range t.TopNames() {
		if rules.isHelper(top) {
			continue
		}
		field, key, ok := registry.ParseForeignKeyName(top)
		if !ok {
			continue
		}
		entry, known := reg.Get(key)
		if !known {
			out = append(out, Unrecognized{Sheet: sheet, Column: top, Target: key, Reason: ReasonUnknownTarget})
			continue
		}
		if _, ok := matchField(field, entry.IDField, rules.RolePrefix); !ok {
			out = append(out, Unrecognized{
				Sheet:   sheet,
				Column:  top,
				Target:  key,
				Reason:  ReasonIDFieldMismatch,
				IDField: entry.IDField,
			})
		}
	}
	return out
}
