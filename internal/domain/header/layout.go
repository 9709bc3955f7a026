// Package header distributes dotted paths over a fixed number of header rows and back.
package header

import (
	"fmt"
	"regexp"
	"strings"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/pathcodec"
)

// Tuple is the identity of one column: one label per header row.
type Tuple []string

// Key returns a string usable as a map key for the tuple.
func (t Tuple) Key() string {
	return strings.Join(t, "\x1f")
}

// Top returns the first-level label.
func (t Tuple) Top() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Equal reports whether both tuples carry the same labels.
func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the tuple the way it reads in a sheet header, e.g. (a|b|).
func (t Tuple) String() string {
	return fmt.Sprintf("(%s)", strings.Join(t, "|"))
}

// placeholder matches the labels spreadsheet readers invent for blank header cells.
var placeholder = regexp.MustCompile(`^Unnamed: ?\d+(_level_\d+)?$`)

// MaxLevels is the deepest header a sheet may have.
const MaxLevels = 64

// ValidateLevels checks the configured header row count.
func ValidateLevels(levels int) error {
	if levels < 1 {
		return apperror.NewInvalidConfiguration("levels must be at least 1").
			WithDetail("levels", levels)
	}
	if levels > MaxLevels {
		return apperror.NewInvalidConfiguration(fmt.Sprintf("levels must be at most %d", MaxLevels)).
			WithDetail("levels", levels)
	}
	return nil
}

// ToTuple lays a dotted path out over levels header rows.
// Shorter paths are padded with empty labels; longer ones keep their first levels-1
// segments and collapse the rest, re-joined with ".", into the last row.
func ToTuple(path string, levels int) (Tuple, error) {
	if err := ValidateLevels(levels); err != nil {
		return nil, err
	}
	segs := strings.Split(path, pathcodec.Separator)

	t := make(Tuple, levels)
	if len(segs) < levels {
		copy(t, segs)
		return t, nil
	}
	copy(t, segs[:levels-1])
	t[levels-1] = strings.Join(segs[levels-1:], pathcodec.Separator)
	return t, nil
}

// FromTuple joins the non-empty labels of t back into a dotted path.
// A tuple with only empty labels yields "".
func FromTuple(t Tuple) string {
	parts := make([]string, 0, len(t))
	for _, seg := range t {
		if IsEmptyLabel(seg) {
			continue
		}
		parts = append(parts, strings.TrimSpace(seg))
	}
	return strings.Join(parts, pathcodec.Separator)
}

// IsEmptyLabel reports whether a header cell carries no label.
func IsEmptyLabel(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "nan", "none":
		return true
	}
	return placeholder.MatchString(s)
}

// Pad lifts t to exactly levels labels. Extra trailing labels are folded into the last row.
func Pad(t Tuple, levels int) Tuple {
	if len(t) == levels {
		return t
	}
	out := make(Tuple, levels)
	if len(t) < levels {
		copy(out, t)
		return out
	}
	copy(out, t[:levels-1])
	var tail []string
	for _, seg := range t[levels-1:] {
		if !IsEmptyLabel(seg) {
			tail = append(tail, seg)
		}
	}
	out[levels-1] = strings.Join(tail, pathcodec.Separator)
	return out
}

// Normalize blanks out placeholder labels so that tuples read from different sources compare equal.
func Normalize(t Tuple) Tuple {
	out := make(Tuple, len(t))
	for i, seg := range t {
		if IsEmptyLabel(seg) {
			continue
		}
		out[i] = strings.TrimSpace(seg)
	}
	return out
}
