// Package validation turns reference findings into ignore, warn or fail outcomes and
// drives helper-column enrichment.
package validation

import (
	"context"
	"fmt"
	"strings"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/pkg/logger"
)

// Mode selects what happens when a category of findings is not empty.
type Mode string

const (
	ModeIgnore Mode = "ignore"
	ModeWarn   Mode = "warn"
	ModeFail   Mode = "fail"
)

// ParseMode reads a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeIgnore, ModeWarn, ModeFail:
		return m, nil
	default:
		return "", apperror.NewInvalidConfiguration(fmt.Sprintf("unknown validation mode %q", s)).
			WithDetail("allowed", []Mode{ModeIgnore, ModeWarn, ModeFail})
	}
}

// Category names a class of findings.
type Category string

const (
	CategoryDuplicateIDs Category = "duplicate_ids"
	CategoryMissingFK    Category = "missing_fk"
)

// Warning is emitted to a WarningSink when a category in warn mode has findings.
type Warning struct {
	Category Category
	Message  string
	Report   *Report
}

// WarningSink receives warnings. It must not fail the run.
type WarningSink interface {
	Warn(ctx context.Context, w Warning)
}

// WarningSinkFunc adapts a function to WarningSink.
type WarningSinkFunc func(ctx context.Context, w Warning)

// Warn calls f.
func (f WarningSinkFunc) Warn(ctx context.Context, w Warning) { f(ctx, w) }

// LogSink writes warnings through the structured logger.
type LogSink struct {
	Logger *logger.Logger
}

// Warn logs w with a compact summary of its category.
func (s LogSink) Warn(ctx context.Context, w Warning) {
	l := s.Logger
	if l == nil {
		l = logger.FromContext(ctx)
	} else {
		l = l.WithContext(ctx)
	}
	l.Warnw(w.Message, "category", string(w.Category), "findings", w.Report.Summary(w.Category))
}

// Policy holds one mode per category.
type Policy struct {
	MissingFK    Mode `yaml:"mode_missing_fk" json:"mode_missing_fk"`
	DuplicateIDs Mode `yaml:"mode_duplicate_ids" json:"mode_duplicate_ids"`
}

// DefaultPolicy warns on both categories.
func DefaultPolicy() Policy {
	return Policy{MissingFK: ModeWarn, DuplicateIDs: ModeWarn}
}

// Validate checks both modes.
func (p Policy) Validate() error {
	if _, err := ParseMode(string(p.MissingFK)); err != nil {
		return err
	}
	_, err := ParseMode(string(p.DuplicateIDs))
	return err
}

// ModeFor returns the mode of a category.
func (p Policy) ModeFor(c Category) Mode {
	if c == CategoryDuplicateIDs {
		return p.DuplicateIDs
	}
	return p.MissingFK
}

// Dispatch applies the mode of category to report.
// Nothing happens when the category has no findings or is ignored.
func (p Policy) Dispatch(ctx context.Context, sink WarningSink, category Category, report *Report) error {
	if !report.Has(category) {
		return nil
	}
	switch p.ModeFor(category) {
	case ModeWarn:
		if sink != nil {
			sink.Warn(ctx, Warning{Category: category, Message: messageFor(category), Report: report})
		}
		return nil
	case ModeFail:
		return failure(category, report)
	default:
		return nil
	}
}

func messageFor(c Category) string {
	if c == CategoryDuplicateIDs {
		return "duplicate ids found"
	}
	return "missing foreign-key references found"
}

func failure(c Category, report *Report) error {
	code := apperror.CodeMissingReferences
	if c == CategoryDuplicateIDs {
		code = apperror.CodeDuplicateIDs
	}
	return apperror.NewBusinessRule(code, messageFor(c)).
		WithDetail("category", string(c)).
		WithDetail("report", report)
}

// ReportFromError recovers the report attached to a fail-mode error.
func ReportFromError(err error) (*Report, bool) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return nil, false
	}
	r, ok := appErr.Details["report"].(*Report)
	return r, ok
}
