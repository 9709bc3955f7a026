// Package config loads the YAML application config: engine defaults, per-sheet field
// overrides, I/O endpoints with named profiles, and named pipelines of steps.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/registry"
	"sheetbridge/internal/domain/validation"
)

// Defaults are the engine settings.
type Defaults struct {
	Levels       int    `yaml:"levels"`
	IDField      string `yaml:"id_field"`
	LabelField   string `yaml:"label_field"`
	HelperPrefix string `yaml:"helper_prefix"`
	// DetectFK is a pointer so that an explicit false survives merging with the defaults.
	DetectFK         *bool  `yaml:"detect_fk"`
	FKRolePrefix     *bool  `yaml:"fk_role_prefix"`
	ModeMissingFK    string `yaml:"mode_missing_fk"`
	ModeDuplicateIDs string `yaml:"mode_duplicate_ids"`
	CSVDelimiter     string `yaml:"csv_delimiter"`
}

// Endpoint is one side of a run: a backend kind and a location.
type Endpoint struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Complete reports whether both kind and path are set.
func (e Endpoint) Complete() bool { return e.Kind != "" && e.Path != "" }

// Profile binds input, output and an optional pipeline name.
type Profile struct {
	Input    Endpoint `yaml:"input"`
	Output   Endpoint `yaml:"output"`
	Pipeline string   `yaml:"pipeline"`
}

// IO holds the top-level endpoints and named profiles.
type IO struct {
	Input    Endpoint           `yaml:"input"`
	Output   Endpoint           `yaml:"output"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// StepSpec names a pipeline step and keeps its arguments undecoded until the step is built.
type StepSpec struct {
	Step string    `yaml:"step"`
	Args yaml.Node `yaml:"args"`
}

// DecodeArgs decodes the step arguments into v. Missing arguments leave v untouched.
func (s StepSpec) DecodeArgs(v any) error {
	if s.Args.Kind == 0 {
		return nil
	}
	if err := s.Args.Decode(v); err != nil {
		return apperror.NewInvalidConfiguration(fmt.Sprintf("step %q: bad arguments", s.Step)).WithCause(err)
	}
	return nil
}

// Postgres configures the postgres backend.
type Postgres struct {
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
}

// S3 configures object storage for s3:// paths.
type S3 struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Storage groups backend connection settings.
type Storage struct {
	Postgres Postgres `yaml:"postgres"`
	S3       S3       `yaml:"s3"`
}

// AppConfig is the root of the YAML file.
type AppConfig struct {
	Defaults  Defaults                   `yaml:"defaults"`
	Sheets    map[string]registry.Fields `yaml:"sheets"`
	IO        IO                         `yaml:"io"`
	Pipelines map[string][]StepSpec      `yaml:"pipelines"`
	Pipeline  []StepSpec                 `yaml:"pipeline"`
	Storage   Storage                    `yaml:"storage"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	detect, roles := true, true
	return &AppConfig{
		Defaults: Defaults{
			Levels:           3,
			IDField:          registry.DefaultIDField,
			LabelField:       registry.DefaultLabelField,
			HelperPrefix:     "_",
			DetectFK:         &detect,
			FKRolePrefix:     &roles,
			ModeMissingFK:    string(validation.ModeWarn),
			ModeDuplicateIDs: string(validation.ModeWarn),
			CSVDelimiter:     ",",
		},
	}
}

// Load reads path and merges it over Default.
func Load(path string) (*AppConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.NewInvalidConfiguration(fmt.Sprintf("cannot open config %s", path)).WithCause(err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r and merges it over Default.
func Parse(r io.Reader) (*AppConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	var loaded AppConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&loaded); err != nil {
		return nil, apperror.NewInvalidConfiguration("malformed config").WithCause(err)
	}
	cfg.merge(&loaded)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) merge(o *AppConfig) {
	d := &c.Defaults
	if o.Defaults.Levels != 0 {
		d.Levels = o.Defaults.Levels
	}
	if o.Defaults.IDField != "" {
		d.IDField = o.Defaults.IDField
	}
	if o.Defaults.LabelField != "" {
		d.LabelField = o.Defaults.LabelField
	}
	if o.Defaults.HelperPrefix != "" {
		d.HelperPrefix = o.Defaults.HelperPrefix
	}
	if o.Defaults.DetectFK != nil {
		d.DetectFK = o.Defaults.DetectFK
	}
	if o.Defaults.FKRolePrefix != nil {
		d.FKRolePrefix = o.Defaults.FKRolePrefix
	}
	if o.Defaults.ModeMissingFK != "" {
		d.ModeMissingFK = o.Defaults.ModeMissingFK
	}
	if o.Defaults.ModeDuplicateIDs != "" {
		d.ModeDuplicateIDs = o.Defaults.ModeDuplicateIDs
	}
	if o.Defaults.CSVDelimiter != "" {
		d.CSVDelimiter = o.Defaults.CSVDelimiter
	}
	c.Sheets = o.Sheets
	c.IO = o.IO
	c.Pipelines = o.Pipelines
	c.Pipeline = o.Pipeline
	c.Storage = o.Storage
}

// Validate checks the engine settings and that every profile names a known pipeline.
func (c *AppConfig) Validate() error {
	if _, err := c.EngineOptions(); err != nil {
		return err
	}
	if len([]rune(c.Defaults.CSVDelimiter)) != 1 {
		return apperror.NewInvalidConfiguration("csv_delimiter must be a single character").
			WithDetail("csv_delimiter", c.Defaults.CSVDelimiter)
	}
	for name, p := range c.IO.Profiles {
		if p.Pipeline == "" {
			continue
		}
		if _, ok := c.Pipelines[p.Pipeline]; !ok {
			return apperror.NewInvalidConfiguration(fmt.Sprintf(
				"profile %q refers to unknown pipeline %q", name, p.Pipeline)).
				WithDetail("available", sortedKeys(c.Pipelines))
		}
	}
	return nil
}

// EngineOptions converts the defaults into validation options.
func (c *AppConfig) EngineOptions() (validation.Options, error) {
	missing, err := validation.ParseMode(c.Defaults.ModeMissingFK)
	if err != nil {
		return validation.Options{}, err
	}
	dups, err := validation.ParseMode(c.Defaults.ModeDuplicateIDs)
	if err != nil {
		return validation.Options{}, err
	}
	opts := validation.Options{
		Levels:       c.Defaults.Levels,
		Fields:       registry.Fields{IDField: c.Defaults.IDField, LabelField: c.Defaults.LabelField},
		Overrides:    c.Sheets,
		HelperPrefix: c.Defaults.HelperPrefix,
		DetectFK:     c.Defaults.DetectFK == nil || *c.Defaults.DetectFK,
		RolePrefix:   c.Defaults.FKRolePrefix == nil || *c.Defaults.FKRolePrefix,
		Policy:       validation.Policy{MissingFK: missing, DuplicateIDs: dups},
	}
	return opts, opts.Validate()
}

// SelectIO returns the endpoints of a profile, or the top-level ones when profile is "".
func (c *AppConfig) SelectIO(profile string) (Profile, error) {
	if profile == "" {
		return Profile{Input: c.IO.Input, Output: c.IO.Output}, nil
	}
	p, ok := c.IO.Profiles[profile]
	if !ok {
		return Profile{}, apperror.NewInvalidConfiguration(fmt.Sprintf("unknown profile %q", profile)).
			WithDetail("available", sortedKeys(c.IO.Profiles))
	}
	return p, nil
}

// SelectSteps picks the steps to run: the named pipeline, else the pipeline bound to
// profile, else the top-level pipeline list.
func (c *AppConfig) SelectSteps(name, profile string) ([]StepSpec, error) {
	if name == "" && profile != "" {
		if p, ok := c.IO.Profiles[profile]; ok {
			name = p.Pipeline
		}
	}
	if name == "" {
		return c.Pipeline, nil
	}
	steps, ok := c.Pipelines[name]
	if !ok {
		return nil, apperror.NewInvalidConfiguration(fmt.Sprintf("unknown pipeline %q", name)).
			WithDetail("available", sortedKeys(c.Pipelines))
	}
	return steps, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
