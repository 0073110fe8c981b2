package cli

import (
	"errors"
	"fmt"
	"testing"

	"kvbench/internal/bench"
	"kvbench/internal/endpoint"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("%w: clients must be >= 1", bench.ErrConfig), 2},
		{fmt.Errorf("%w: probed 3 candidates", endpoint.ErrNoEndpoints), 3},
		{errors.New("disk full"), 1},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
