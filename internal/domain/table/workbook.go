package table

import (
	"encoding/hex"
	"hash"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Workbook is an ordered collection of named tables.
type Workbook struct {
	names  []string
	tables map[string]*Table
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{tables: make(map[string]*Table)}
}

// Set adds or replaces the table under name. New names are appended to the sheet order.
func (w *Workbook) Set(name string, t *Table) {
	if _, ok := w.tables[name]; !ok {
		w.names = append(w.names, name)
	}
	w.tables[name] = t
}

// Get returns the table stored under name.
func (w *Workbook) Get(name string) (*Table, bool) {
	t, ok := w.tables[name]
	return t, ok
}

// Names returns sheet names in order.
func (w *Workbook) Names() []string {
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

// Len returns the number of sheets.
func (w *Workbook) Len() int { return len(w.names) }

// Clone returns a shallow copy: the sheet list is new, the tables are shared.
// Tables are never modified in place, so sharing them is safe.
func (w *Workbook) Clone() *Workbook {
	out := NewWorkbook()
	for _, n := range w.names {
		out.Set(n, w.tables[n])
	}
	return out
}

// Fingerprint returns a BLAKE2b-256 digest over sheet names, headers and cell text.
// Two workbooks with the same content in the same order share a fingerprint.
func (w *Workbook) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	for _, name := range w.names {
		t := w.tables[name]
		writeField(h, "sheet", name)
		writeField(h, "levels", strconv.Itoa(t.levels))
		for _, col := range t.columns {
			for _, seg := range col {
				writeField(h, "h", seg)
			}
		}
		for _, row := range t.rows {
			writeField(h, "row", "")
			for _, v := range row {
				writeField(h, "c", CellString(v))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, tag, value string) {
	h.Write([]byte(tag))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(len(value))))
	h.Write([]byte{0})
	h.Write([]byte(value))
}
