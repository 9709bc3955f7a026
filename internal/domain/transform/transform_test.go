package transform

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/header"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/domain/validation"
)

type yamlArgs string

func (a yamlArgs) DecodeArgs(v any) error { return yaml.Unmarshal([]byte(a), v) }

func sheet(t *testing.T, cols []string, rows ...[]any) *table.Table {
	t.Helper()
	tuples := make([]header.Tuple, len(cols))
	for i, c := range cols {
		tuples[i] = header.Tuple{c, ""}
	}
	tbl, err := table.New(2, tuples)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, tbl.AppendRow(r))
	}
	return tbl
}

func book(t *testing.T) *table.Workbook {
	wb := table.NewWorkbook()
	wb.Set("Customers", sheet(t, []string{"id", "name", "note"},
		[]any{json.Number("1"), "Ann", "vip"},
	))
	wb.Set("Orders", sheet(t, []string{"id", "customer_id_(Customers)", "note", "helper__tmp"},
		[]any{json.Number("10"), json.Number("1"), "", "x"},
		[]any{json.Number("11"), json.Number("7"), "", "y"},
	))
	return wb
}

func engine(t *testing.T, policy validation.Policy) *validation.Engine {
	opts := validation.DefaultOptions()
	opts.Levels = 2
	opts.Policy = policy
	e, err := validation.NewEngine(opts, validation.WithWarningSink(validation.WarningSinkFunc(
		func(context.Context, validation.Warning) {})))
	require.NoError(t, err)
	return e
}

func TestMarkHelpers(t *testing.T) {
	wb := book(t)
	out, err := MarkHelpers(wb, "Orders", []string{"note", "_already", "missing"}, "_")
	require.NoError(t, err)

	orders, _ := out.Get("Orders")
	assert.Equal(t, []string{"id", "customer_id_(Customers)", "_note", "helper__tmp"}, orders.TopNames())
	customers, _ := out.Get("Customers")
	assert.Equal(t, []string{"id", "name", "note"}, customers.TopNames())

	orig, _ := wb.Get("Orders")
	assert.True(t, orig.HasTop("note"))
}

func TestMarkHelpers_AllSheets(t *testing.T) {
	out, err := MarkHelpers(book(t), "", []string{"note"}, "_")
	require.NoError(t, err)
	for _, name := range out.Names() {
		tbl, _ := out.Get(name)
		assert.True(t, tbl.HasTop("_note"), name)
	}
}

func TestCleanAuxColumns(t *testing.T) {
	wb, err := MarkHelpers(book(t), "", []string{"note"}, "_")
	require.NoError(t, err)

	out := CleanAuxColumns(wb, "", nil)
	orders, _ := out.Get("Orders")
	assert.Equal(t, []string{"id", "customer_id_(Customers)"}, orders.TopNames())

	out = CleanAuxColumns(wb, "Customers", []string{"_"})
	orders, _ = out.Get("Orders")
	assert.True(t, orders.HasTop("helper__tmp"))
	customers, _ := out.Get("Customers")
	assert.Equal(t, []string{"id", "name"}, customers.TopNames())
}

func TestBuild_UnknownStep(t *testing.T) {
	_, err := Build(Env{}, "explode", nil)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, Names(), appErr.Details["available"])
}

func TestBuild_EngineRequired(t *testing.T) {
	_, err := Build(Env{}, "validate", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfiguration))
}

func TestApplyFKsThenStrip(t *testing.T) {
	var reports []*validation.Report
	env := Env{
		Engine:   engine(t, validation.DefaultPolicy()),
		OnReport: func(r *validation.Report) { reports = append(reports, r) },
	}
	apply, err := Build(env, "apply_fks", nil)
	require.NoError(t, err)
	strip, err := Build(env, "strip_helpers", nil)
	require.NoError(t, err)

	ctx := context.Background()
	enriched, err := apply(ctx, book(t))
	require.NoError(t, err)
	orders, _ := enriched.Get("Orders")
	assert.True(t, orders.HasTop("_customer_Customers_name"))

	require.Len(t, reports, 1)
	assert.Len(t, reports[0].MissingFK["Orders"], 1)

	stripped, err := strip(ctx, enriched)
	require.NoError(t, err)
	orders, _ = stripped.Get("Orders")
	assert.False(t, orders.HasTop("_customer_Customers_name"))
}

func TestValidateStep_Fail(t *testing.T) {
	env := Env{Engine: engine(t, validation.Policy{MissingFK: validation.ModeFail, DuplicateIDs: validation.ModeWarn})}
	step, err := Build(env, "validate", nil)
	require.NoError(t, err)

	_, err = step(context.Background(), book(t))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingReferences))
	assert.Contains(t, err.Error(), "step validate")
}

func TestCleanAuxStep_Args(t *testing.T) {
	step, err := Build(Env{}, "clean_aux_columns", yamlArgs("drop_prefixes: [helper__]"))
	require.NoError(t, err)

	out, err := step(context.Background(), book(t))
	require.NoError(t, err)
	orders, _ := out.Get("Orders")
	assert.Equal(t, []string{"id", "customer_id_(Customers)", "note"}, orders.TopNames())
}
