package domain

import (
	"fmt"
	"strings"
)

// Environment is the deployment environment a table lives in.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvStg  Environment = "stg"
	EnvPrd  Environment = "prd"
	EnvTest Environment = "test"
)

func (e Environment) Valid() bool {
	switch e {
	case EnvDev, EnvStg, EnvPrd, EnvTest:
		return true
	}
	return false
}

// ParseEnvironment accepts the short names and a few common spellings.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDev, nil
	case "stg", "staging":
		return EnvStg, nil
	case "prd", "prod", "production":
		return EnvPrd, nil
	case "test":
		return EnvTest, nil
	}
	return "", fmt.Errorf("unknown environment: %q", s)
}

// TableType mirrors the warehouse table kinds.
type TableType string

const (
	TableTypeTable            TableType = "TABLE"
	TableTypeView             TableType = "VIEW"
	TableTypeMaterializedView TableType = "MATERIALIZED_VIEW"
	TableTypeExternal         TableType = "EXTERNAL"
	TableTypeSnapshot         TableType = "SNAPSHOT"
)

func (t TableType) Valid() bool {
	switch t {
	case TableTypeTable, TableTypeView, TableTypeMaterializedView, TableTypeExternal, TableTypeSnapshot:
		return true
	}
	return false
}

// Verdict is the outcome of evaluating a report against thresholds.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictWarn, VerdictFail:
		return true
	}
	return false
}

// VerdictScore maps verdicts to explicit severities. Never rely on string ordering.
var VerdictScore = map[Verdict]int{
	VerdictPass: 0,
	VerdictWarn: 10,
	VerdictFail: 20,
}

// Worse returns the more severe of two verdicts.
func Worse(a, b Verdict) Verdict {
	if VerdictScore[b] > VerdictScore[a] {
		return b
	}
	return a
}
