package render

import "testing"

func TestServiceLabel(t *testing.T) {
	tests := map[string]string{
		"job-abc123":                 "abc123",
		"job-":                       "",
		"svc-7":                      "svc-7",
		"12345678":                   "12345678",
		"prod-ingest-worker-0042":    "ker-0042",
		"ünïcödé-sërvïcé":            "-sërvïcé",
		"job-prod-ingest-worker-001": "prod-ingest-worker-001",
	}
	for in, want := range tests {
		if got := ServiceLabel(in); got != want {
			t.Errorf("ServiceLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
