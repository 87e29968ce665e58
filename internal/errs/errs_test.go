package errs

import (
	"fmt"
	"testing"
)

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing", fmt.Errorf("submit: %w", ErrMissingParameter), true},
		{"invalid", fmt.Errorf("parse advertiser id: %w", ErrInvalidParameter), true},
		{"transport", fmt.Errorf("get query: %w", ErrTransport), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClientError(tt.err); got != tt.want {
				t.Errorf("IsClientError() = %v, want %v", got, tt.want)
			}
		})
	}
}
