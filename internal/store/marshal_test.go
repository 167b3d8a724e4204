package store

import (
	"reflect"
	"testing"
)

func TestMarshalNames(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{nil, "[]"},
		{[]string{}, "[]"},
		{[]string{"JoinSort", "ServerJoin"}, `["JoinSort","ServerJoin"]`},
		{[]string{"<&>"}, `["<&>"]`},
	}
	for _, tt := range tests {
		got, err := marshalNames(tt.names)
		if err != nil {
			t.Fatalf("marshalNames(%v) failed: %v", tt.names, err)
		}
		if got != tt.want {
			t.Errorf("marshalNames(%v) = %s, want %s", tt.names, got, tt.want)
		}
	}
}

func TestUnmarshalNames(t *testing.T) {
	got, err := unmarshalNames(`["A","B"]`)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("unmarshalNames() = %v", got)
	}

	empty, err := unmarshalNames("")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("unmarshalNames(\"\") = %#v, %v", empty, err)
	}

	if _, err := unmarshalNames("{"); err == nil {
		t.Error("unmarshalNames() of malformed JSON should fail")
	}
}
