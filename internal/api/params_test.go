package api

import "testing"

func TestGetPathParam(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   string
	}{
		{"/sync/run/my-project", "/sync/run/", "my-project"},
		{"/sync/run/my-project/", "/sync/run/", "my-project"},
		{"/sync/run/", "/sync/run/", ""},
		{"/jobs/status/abc123", "/jobs/status/", "abc123"},
		{"/jobs/status/abc123", "/other/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := GetPathParam(tt.path, tt.prefix); got != tt.want {
				t.Errorf("GetPathParam(%q, %q) = %q, want %q", tt.path, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestQueryParamInt(t *testing.T) {
	tests := []struct {
		name       string
		query      map[string][]string
		param      string
		defaultVal int
		want       int
	}{
		{"present", map[string][]string{"maxNodes": {"50"}}, "maxNodes", 10, 50},
		{"missing", map[string][]string{}, "maxNodes", 10, 10},
		{"empty string", map[string][]string{"maxNodes": {""}}, "maxNodes", 10, 10},
		{"not a number", map[string][]string{"maxNodes": {"abc"}}, "maxNodes", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QueryParamInt(tt.query, tt.param, tt.defaultVal); got != tt.want {
				t.Errorf("QueryParamInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQueryParamBool(t *testing.T) {
	tests := []struct {
		name       string
		query      map[string][]string
		defaultVal bool
		want       bool
	}{
		{"true literal", map[string][]string{"watch": {"true"}}, false, true},
		{"1 literal", map[string][]string{"watch": {"1"}}, false, true},
		{"yes literal", map[string][]string{"watch": {"yes"}}, false, true},
		{"false literal", map[string][]string{"watch": {"false"}}, true, false},
		{"missing uses default", map[string][]string{}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QueryParamBool(tt.query, "watch", tt.defaultVal); got != tt.want {
				t.Errorf("QueryParamBool() = %v, want %v", got, tt.want)
			}
		})
	}
}
