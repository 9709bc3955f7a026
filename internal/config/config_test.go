package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/validation"
)

const sample = `
defaults:
  levels: 2
  mode_missing_fk: fail
  detect_fk: false
  fk_role_prefix: false
  csv_delimiter: ";"
sheets:
  Products:
    id_field: sku
io:
  input: {kind: json_dir, path: in}
  output: {kind: xlsx, path: out.xlsx}
  profiles:
    nightly:
      input: {kind: csv_dir, path: exports}
      output: {kind: sqlite, path: book.db}
      pipeline: strict
pipelines:
  strict:
    - step: validate
    - step: clean_aux_columns
      args:
        drop_prefixes: ["_"]
pipeline:
  - step: apply_fks
`

func TestParse_MergesOverDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Defaults.Levels)
	assert.Equal(t, "id", cfg.Defaults.IDField)
	assert.Equal(t, "_", cfg.Defaults.HelperPrefix)
	assert.Equal(t, ";", cfg.Defaults.CSVDelimiter)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.False(t, opts.DetectFK)
	assert.False(t, opts.RolePrefix)
	assert.Equal(t, validation.ModeFail, opts.Policy.MissingFK)
	assert.Equal(t, validation.ModeWarn, opts.Policy.DuplicateIDs)
	assert.Equal(t, "sku", opts.Overrides["Products"].IDField)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default().Defaults.Levels, cfg.Defaults.Levels)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.True(t, opts.RolePrefix)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("defaults:\n  levles: 2\n"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfiguration))
}

func TestParse_RejectsBadMode(t *testing.T) {
	_, err := Parse(strings.NewReader("defaults:\n  mode_duplicate_ids: loud\n"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidConfiguration))
}

func TestParse_RejectsUnknownProfilePipeline(t *testing.T) {
	_, err := Parse(strings.NewReader("io:\n  profiles:\n    p:\n      pipeline: nope\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown pipeline "nope"`)
}

func TestSelectIO(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	p, err := cfg.SelectIO("")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Kind: "json_dir", Path: "in"}, p.Input)

	p, err = cfg.SelectIO("nightly")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", p.Output.Kind)
	assert.True(t, p.Output.Complete())

	_, err = cfg.SelectIO("weekly")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"nightly"}, appErr.Details["available"])
}

func TestSelectSteps(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	steps, err := cfg.SelectSteps("", "")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "apply_fks", steps[0].Step)

	steps, err = cfg.SelectSteps("", "nightly")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	var args struct {
		DropPrefixes []string `yaml:"drop_prefixes"`
	}
	require.NoError(t, steps[1].DecodeArgs(&args))
	assert.Equal(t, []string{"_"}, args.DropPrefixes)

	_, err = cfg.SelectSteps("lenient", "")
	require.Error(t, err)
}
