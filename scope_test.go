package oauth

import (
	"reflect"
	"testing"
)

func TestScopeToList(t *testing.T) {
	tests := []struct {
		scope string
		want  []string
	}{
		{scope: "", want: nil},
		{scope: "read", want: []string{"read"}},
		{scope: " read  write ", want: []string{"read", "write"}},
	}
	for _, tt := range tests {
		got := ScopeToList(tt.scope)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ScopeToList(%q) = %v, want %v", tt.scope, got, tt.want)
		}
	}
}

func TestListToScope(t *testing.T) {
	if got := ListToScope([]string{"read", "write"}); got != "read write" {
		t.Errorf("ListToScope() = %q, want %q", got, "read write")
	}
	if got := ListToScope(nil); got != "" {
		t.Errorf("ListToScope(nil) = %q, want empty", got)
	}
}

func TestScopeIsSubset(t *testing.T) {
	tests := []struct {
		requested string
		granted   string
		want      bool
	}{
		{requested: "", granted: "", want: true},
		{requested: "", granted: "read", want: true},
		{requested: "read", granted: "read write", want: true},
		{requested: "write read", granted: "read write", want: true},
		{requested: "read admin", granted: "read write", want: false},
		{requested: "read", granted: "", want: false},
	}
	for _, tt := range tests {
		if got := ScopeIsSubset(tt.requested, tt.granted); got != tt.want {
			t.Errorf("ScopeIsSubset(%q, %q) = %v, want %v", tt.requested, tt.granted, got, tt.want)
		}
	}
}
