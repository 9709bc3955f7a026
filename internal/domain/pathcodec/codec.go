// Package pathcodec converts nested JSON trees into flat dotted-path records and back.
//
// Objects are walked recursively and their keys joined with ".". Lists are never
// traversed: a list is stored as a compact JSON string leaf at its own path.
package pathcodec

import (
	"strings"

	"sheetbridge/internal/core/apperror"
)

// Separator joins path segments.
const Separator = "."

// Record is a flat mapping from dotted path to leaf value, in first-seen path order.
type Record struct {
	paths  []string
	values map[string]any
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores a leaf under path.
func (r *Record) Set(path string, value any) {
	if _, ok := r.values[path]; !ok {
		r.paths = append(r.paths, path)
	}
	r.values[path] = value
}

// Get returns the leaf stored under path.
func (r *Record) Get(path string) (any, bool) {
	v, ok := r.values[path]
	return v, ok
}

// Paths returns the paths in insertion order.
func (r *Record) Paths() []string {
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// Len returns the number of leaves.
func (r *Record) Len() int { return len(r.paths) }

// Flatten turns an object tree into a Record.
// Empty nested objects contribute no path; empty lists become the leaf "[]".
func Flatten(node any) (*Record, error) {
	obj, ok := node.(*Object)
	if !ok {
		return nil, apperror.NewInvalidInput("only JSON objects can be flattened")
	}
	rec := NewRecord()
	if err := flattenInto(rec, "", obj); err != nil {
		return nil, err
	}
	return rec, nil
}

// FlattenAll flattens every object in order.
func FlattenAll(objs []*Object) ([]*Record, error) {
	out := make([]*Record, 0, len(objs))
	for _, obj := range objs {
		rec, err := Flatten(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func flattenInto(rec *Record, prefix string, obj *Object) error {
	for _, key := range obj.keys {
		path := key
		if prefix != "" {
			path = prefix + Separator + key
		}
		switch v := obj.values[key].(type) {
		case *Object:
			if err := flattenInto(rec, path, v); err != nil {
				return err
			}
		case []any:
			s, err := Compact(v)
			if err != nil {
				return apperror.NewInvalidInput("list cannot be serialized").
					WithDetail("path", path).WithCause(err)
			}
			rec.Set(path, s)
		default:
			rec.Set(path, v)
		}
	}
	return nil
}

type options struct {
	overwrite bool
}

// Option configures Unflatten and Set.
type Option func(*options)

// WithOverwrite lets a later path replace a conflicting earlier value instead of failing.
func WithOverwrite() Option {
	return func(o *options) { o.overwrite = true }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Unflatten rebuilds the object tree of a Record.
// A path that runs through an existing leaf, or a leaf that lands on an existing object,
// fails with CONFLICTING_PATH unless WithOverwrite is given.
func Unflatten(rec *Record, opts ...Option) (*Object, error) {
	root := NewObject()
	for _, path := range rec.paths {
		if err := Set(root, path, rec.values[path], opts...); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Set assigns value at the dotted path inside obj, creating intermediate objects.
func Set(obj *Object, path string, value any, opts ...Option) error {
	o := buildOptions(opts)
	segs := strings.Split(path, Separator)

	cur := obj
	for i, seg := range segs[:len(segs)-1] {
		next, ok := cur.Get(seg)
		if !ok {
			child := NewObject()
			cur.Set(seg, child)
			cur = child
			continue
		}
		if child, isObj := next.(*Object); isObj {
			cur = child
			continue
		}
		if !o.overwrite {
			return apperror.NewConflictingPath(path, strings.Join(segs[:i+1], Separator))
		}
		child := NewObject()
		cur.Set(seg, child)
		cur = child
	}

	last := segs[len(segs)-1]
	if existing, ok := cur.Get(last); ok {
		if _, isObj := existing.(*Object); isObj && !o.overwrite {
			return apperror.NewConflictingPath(path, path)
		}
	}
	cur.Set(last, value)
	return nil
}

// Union returns every path of the records in first-seen order.
func Union(records []*Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range records {
		for _, p := range rec.paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
