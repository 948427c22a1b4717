package domain

import "testing"

func TestEnvironmentValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		env   Environment
		valid bool
	}{
		{name: "dev", env: EnvDev, valid: true},
		{name: "stg", env: EnvStg, valid: true},
		{name: "prd", env: EnvPrd, valid: true},
		{name: "test", env: EnvTest, valid: true},
		{name: "bogus", env: Environment("qa"), valid: false},
		{name: "empty", env: Environment(""), valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.env.Valid(); got != tt.valid {
				t.Errorf("Environment(%q).Valid() = %v, want %v", tt.env, got, tt.valid)
			}
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Environment
		wantErr bool
	}{
		{in: "prd", want: EnvPrd},
		{in: "Production", want: EnvPrd},
		{in: " staging ", want: EnvStg},
		{in: "development", want: EnvDev},
		{in: "uat", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseEnvironment(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEnvironment(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvironment(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseEnvironment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTableTypeValid(t *testing.T) {
	t.Parallel()
	for _, tt := range []TableType{TableTypeTable, TableTypeView, TableTypeMaterializedView, TableTypeExternal, TableTypeSnapshot} {
		if !tt.Valid() {
			t.Errorf("TableType(%q).Valid() = false, want true", tt)
		}
	}
	if TableType("table").Valid() {
		t.Error("lower-case table type should be invalid")
	}
}

func TestWorse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b, want Verdict
	}{
		{VerdictPass, VerdictPass, VerdictPass},
		{VerdictPass, VerdictWarn, VerdictWarn},
		{VerdictFail, VerdictWarn, VerdictFail},
		{VerdictWarn, VerdictFail, VerdictFail},
	}
	for _, tt := range tests {
		if got := Worse(tt.a, tt.b); got != tt.want {
			t.Errorf("Worse(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
