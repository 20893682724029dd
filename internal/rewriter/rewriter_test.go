package rewriter

import (
	"reflect"
	"testing"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/policy"
)

func TestRewrite(t *testing.T) {
	p := policy.Default() // DefaultLimit 200, MaxLimit 1000

	cases := []struct {
		name      string
		in        string
		wantSQL   string
		wantXform []string
	}{
		{
			name:      "adds limit when absent",
			in:        "SELECT state FROM fuel_stations",
			wantSQL:   "SELECT state FROM fuel_stations LIMIT 200",
			wantXform: []string{TransformAddedLimit},
		},
		{
			name:    "within bounds untouched",
			in:      "SELECT state FROM fuel_stations LIMIT 50",
			wantSQL: "SELECT state FROM fuel_stations LIMIT 50",
		},
		{
			name:    "exactly at max untouched",
			in:      "SELECT state FROM fuel_stations LIMIT 1000",
			wantSQL: "SELECT state FROM fuel_stations LIMIT 1000",
		},
		{
			name:      "over max capped",
			in:        "SELECT state FROM fuel_stations LIMIT 5000",
			wantSQL:   "SELECT state FROM fuel_stations LIMIT 1000",
			wantXform: []string{TransformCappedLimit},
		},
		{
			name:      "lowercase limit capped",
			in:        "select state from fuel_stations limit 9999",
			wantSQL:   "select state from fuel_stations LIMIT 1000",
			wantXform: []string{TransformCappedLimit},
		},
		{
			name:      "only first limit literal rewritten",
			in:        "SELECT a FROM (SELECT b FROM t LIMIT 4000) LIMIT 3000",
			wantSQL:   "SELECT a FROM (SELECT b FROM t LIMIT 1000) LIMIT 3000",
			wantXform: []string{TransformCappedLimit},
		},
		{
			name:    "limit keyword without integer left alone",
			in:      "SELECT a FROM t LIMIT ?",
			wantSQL: "SELECT a FROM t LIMIT ?",
		},
		{
			name:      "surrounding whitespace trimmed before append",
			in:        "  SELECT a FROM t  ",
			wantSQL:   "SELECT a FROM t LIMIT 200",
			wantXform: []string{TransformAddedLimit},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Rewrite(tc.in, p)
			if got.SQL != tc.wantSQL {
				t.Errorf("SQL = %q, want %q", got.SQL, tc.wantSQL)
			}
			if !reflect.DeepEqual(got.AppliedTransforms, tc.wantXform) {
				t.Errorf("AppliedTransforms = %v, want %v", got.AppliedTransforms, tc.wantXform)
			}
		})
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	p := policy.Default()
	inputs := []string{
		"SELECT state FROM fuel_stations",
		"SELECT state FROM fuel_stations LIMIT 5000",
		"SELECT state FROM fuel_stations LIMIT 10",
	}
	for _, in := range inputs {
		once := Rewrite(in, p)
		twice := Rewrite(once.SQL, p)
		if twice.SQL != once.SQL {
			t.Errorf("Rewrite not idempotent for %q: %q then %q", in, once.SQL, twice.SQL)
		}
		if len(twice.AppliedTransforms) != 0 {
			t.Errorf("second pass over %q applied transforms: %v", once.SQL, twice.AppliedTransforms)
		}
	}
}

func TestRewrite_IdentifierContainingLimitStillAppends(t *testing.T) {
	p := policy.Default()
	// "limits" does not match the LIMIT word boundary, so a real LIMIT is added.
	got := Rewrite("SELECT rate_limits FROM quotas", p)
	if got.SQL != "SELECT rate_limits FROM quotas LIMIT 200" {
		t.Errorf("SQL = %q", got.SQL)
	}
}
