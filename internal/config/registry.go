package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Platform names the warehouse a table is read from.
type Platform string

const (
	PlatformBigQuery Platform = "bigquery"
	PlatformAthena   Platform = "athena"
	PlatformPostgres Platform = "postgres"
	PlatformDuckDB   Platform = "duckdb"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformBigQuery, PlatformAthena, PlatformPostgres, PlatformDuckDB:
		return true
	}
	return false
}

var (
	entryNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)
	columnPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	partitionValue   = regexp.MustCompile(`^[A-Za-z0-9_\-:. ]+$`)
)

// TableSpec locates one side of an audit.
type TableSpec struct {
	Platform    Platform               `yaml:"platform" json:"platform"`
	Environment string                 `yaml:"environment,omitempty" json:"environment,omitempty"`
	Project     string                 `yaml:"project,omitempty" json:"project,omitempty"`
	Dataset     string                 `yaml:"dataset" json:"dataset"`
	Table       string                 `yaml:"table" json:"table"`
	Type        string                 `yaml:"type,omitempty" json:"type,omitempty"`
	Where       string                 `yaml:"where,omitempty" json:"where,omitempty"`
	Partition   *domain.PartitionRange `yaml:"partition,omitempty" json:"partition,omitempty"`
}

// Request builds the fetch request for this side.
func (s TableSpec) Request(env domain.Environment, limit int) (domain.FetchRequest, error) {
	td, err := s.Descriptor(env)
	if err != nil {
		return domain.FetchRequest{}, err
	}
	return domain.FetchRequest{Table: td, Where: s.Where, Partition: s.Partition, Limit: limit}, nil
}

// Descriptor builds the validated TableDescriptor, defaulting the environment.
func (s TableSpec) Descriptor(env domain.Environment) (domain.TableDescriptor, error) {
	if s.Environment != "" {
		e, err := domain.ParseEnvironment(s.Environment)
		if err != nil {
			return domain.TableDescriptor{}, err
		}
		env = e
	}
	b := domain.NewTable(env).Project(s.Project).Dataset(s.Dataset).Name(s.Table)
	if s.Type != "" {
		b = b.Type(domain.TableType(strings.ToUpper(s.Type)))
	}
	return b.Build()
}

func (s TableSpec) validate(side string) error {
	if !s.Platform.Valid() {
		return fmt.Errorf("%s: unknown platform %q", side, s.Platform)
	}
	if _, err := s.Descriptor(domain.EnvDev); err != nil {
		return fmt.Errorf("%s: %w", side, err)
	}
	if strings.ContainsAny(s.Where, ";") || strings.Contains(s.Where, "--") {
		return fmt.Errorf("%s: where clause must be a single expression", side)
	}
	if p := s.Partition; p != nil {
		if !columnPattern.MatchString(p.Field) {
			return fmt.Errorf("%s: invalid partition field %q", side, p.Field)
		}
		for _, v := range []string{p.Min, p.Max} {
			if v != "" && !partitionValue.MatchString(v) {
				return fmt.Errorf("%s: invalid partition bound %q", side, v)
			}
		}
	}
	return nil
}

// TableEntry is one source/target pair to audit.
type TableEntry struct {
	Name          string                 `yaml:"name" json:"name"`
	Source        TableSpec              `yaml:"source" json:"source"`
	Target        TableSpec              `yaml:"target" json:"target"`
	KeyColumns    []string               `yaml:"key_columns,omitempty" json:"key_columns,omitempty"`
	ColumnMapping map[string]string      `yaml:"column_mapping,omitempty" json:"column_mapping,omitempty"`
	KnownDiffs    []domain.KnownDiffRule `yaml:"known_diffs,omitempty" json:"known_diffs,omitempty"`
	Thresholds    *domain.Thresholds     `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// Defaults apply to entries that leave a setting unset.
type Defaults struct {
	Thresholds *domain.Thresholds `yaml:"thresholds,omitempty"`
}

// Registry is the list of audited tables.
type Registry struct {
	Defaults Defaults     `yaml:"defaults"`
	Tables   []TableEntry `yaml:"tables"`
}

// LoadRegistry reads and validates a YAML registry file.
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("config: read registry: %w", err)
	}
	reg, err := ParseRegistry(data)
	if err != nil {
		return Registry{}, fmt.Errorf("config: registry %s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry decodes a registry document, rejecting unknown fields, fills in
// defaults and validates every entry.
func ParseRegistry(data []byte) (Registry, error) {
	var reg Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil && !errors.Is(err, io.EOF) {
		return Registry{}, fmt.Errorf("decode: %w", err)
	}

	defaults := domain.DefaultThresholds()
	if reg.Defaults.Thresholds != nil {
		defaults = *reg.Defaults.Thresholds
	}
	if err := domain.ValidateThresholds(defaults); err != nil {
		return Registry{}, fmt.Errorf("defaults: %w", err)
	}

	seen := make(map[string]bool, len(reg.Tables))
	for i := range reg.Tables {
		e := &reg.Tables[i]
		if e.Thresholds == nil {
			th := defaults
			e.Thresholds = &th
		}
		if err := e.validate(); err != nil {
			return Registry{}, fmt.Errorf("table %q: %w", e.Name, err)
		}
		if seen[e.Name] {
			return Registry{}, fmt.Errorf("table %q: duplicate name", e.Name)
		}
		seen[e.Name] = true
	}
	return reg, nil
}

func (e TableEntry) validate() error {
	if !entryNamePattern.MatchString(e.Name) {
		return fmt.Errorf("invalid name")
	}
	if err := e.Source.validate("source"); err != nil {
		return err
	}
	if err := e.Target.validate("target"); err != nil {
		return err
	}
	keys := make(map[string]bool, len(e.KeyColumns))
	for _, k := range e.KeyColumns {
		if !columnPattern.MatchString(k) {
			return fmt.Errorf("invalid key column %q", k)
		}
		if keys[strings.ToLower(k)] {
			return fmt.Errorf("duplicate key column %q", k)
		}
		keys[strings.ToLower(k)] = true
	}
	froms := make(map[string]string, len(e.ColumnMapping))
	for from, to := range e.ColumnMapping {
		if !columnPattern.MatchString(from) || !columnPattern.MatchString(to) {
			return fmt.Errorf("invalid column mapping %q -> %q", from, to)
		}
		if prev, dup := froms[strings.ToLower(from)]; dup {
			a, b := prev, from
			if b < a {
				a, b = b, a
			}
			return fmt.Errorf("column mapping lists %q and %q, which differ only by case", a, b)
		}
		froms[strings.ToLower(from)] = from
	}
	for _, kd := range e.KnownDiffs {
		if kd.Column == "" {
			return fmt.Errorf("known diff without column")
		}
		if len(kd.Pairs) == 0 && !kd.NullEqualsEmpty {
			return fmt.Errorf("known diff on %q accepts nothing", kd.Column)
		}
	}
	return domain.ValidateThresholds(*e.Thresholds)
}

// Lookup returns the entry with the given name.
func (r Registry) Lookup(name string) (TableEntry, bool) {
	for _, e := range r.Tables {
		if e.Name == name {
			return e, true
		}
	}
	return TableEntry{}, false
}

// Platforms lists the distinct platforms the registry reads from, sorted.
func (r Registry) Platforms() []Platform {
	set := make(map[Platform]bool)
	for _, e := range r.Tables {
		set[e.Source.Platform] = true
		set[e.Target.Platform] = true
	}
	out := make([]Platform, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CheckDependencies verifies cfg carries the settings every referenced platform needs.
func (r Registry) CheckDependencies(cfg Config) error {
	var errs []error
	for _, p := range r.Platforms() {
		if err := cfg.RequirePlatform(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
