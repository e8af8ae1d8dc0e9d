package httpapi

import "testing"

func TestShouldTraceRequest_Routes(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"/healthz":               false,
		" /HEALTHZ ":             false,
		"/readyz":                false,
		"/v1/stream":             false,
		"/v1/snapshot":           true,
		"/v1/refresh":            true,
		"/v1/standings/tables":   true,
		"/v1/leaders/goals":      true,
		"/v1/match-centre":       true,
		"/v1/live/42":            true,
		"/v1/stream/unsupported": true,
	}
	for path, want := range cases {
		if got := shouldTraceRequest(path); got != want {
			t.Fatalf("shouldTraceRequest(%q)=%v want %v", path, got, want)
		}
	}
}
