package ipv4

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"8.8.8.8", true},
		{"192.168.100.200", true},
		{"999.1.1.1", true},
		{"1.2.3", false},
		{"1.2.3.4.5", false},
		{" 1.2.3.4", false},
		{"1.2.3.4/24", false},
		{"a.b.c.d", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.valid && err != nil {
				t.Errorf("Validate(%q) = %v", tt.in, err)
			}
			if !tt.valid && !errors.Is(err, domain.ErrInvalidIP) {
				t.Errorf("Validate(%q) = %v, want ErrInvalidIP", tt.in, err)
			}
		})
	}
}
