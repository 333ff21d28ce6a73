package ipalloc

import (
	"errors"
	"reflect"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		index int
		used  []string
		want  string
	}{
		{"base itself", "192.168.56.10", 0, nil, "192.168.56.10"},
		{"offset", "192.168.56.10", 3, nil, "192.168.56.13"},
		{"skips used", "192.168.56.10", 1, []string{"192.168.56.11", "192.168.56.12"}, "192.168.56.13"},
		{"skips network and gateway", "10.0.0.0", 0, nil, "10.0.0.2"},
		{"last usable", "10.0.0.250", 4, nil, "10.0.0.254"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.base, tt.index, tt.used)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if got != tt.want {
				t.Errorf("Next(%s, %d) = %s, want %s", tt.base, tt.index, got, tt.want)
			}
		})
	}
}

func TestNextErrors(t *testing.T) {
	if _, err := Next("10.0.0.250", 5, nil); !errors.Is(err, ErrExhausted) {
		t.Errorf("past .254: err = %v, want ErrExhausted", err)
	}
	if _, err := Next("10.0.0.253", 0, []string{"10.0.0.253", "10.0.0.254"}); !errors.Is(err, ErrExhausted) {
		t.Errorf("all used: err = %v, want ErrExhausted", err)
	}
	if _, err := Next("not-an-ip", 0, nil); err == nil {
		t.Error("expected error for invalid base")
	}
	if _, err := Next("fe80::1", 0, nil); err == nil {
		t.Error("expected error for IPv6 base")
	}
	if _, err := Next("10.0.0.5", -1, nil); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestAssign(t *testing.T) {
	got, err := Assign("192.168.56.10", 4, []string{"192.168.56.11"})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	want := []string{"192.168.56.10", "192.168.56.12", "192.168.56.13", "192.168.56.14"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assign = %v, want %v", got, want)
	}
}

func TestAssignExhausted(t *testing.T) {
	_, err := Assign("192.168.56.250", 10, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
}
