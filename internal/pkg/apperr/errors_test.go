package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindInternal},
		{"not found", NotFound("draw", 7), KindNotFound},
		{"wrapped twice", fmt.Errorf("participate: %w", fmt.Errorf("debit: %w", ErrInsufficientFunds)), KindInsufficientFunds},
		{"invalid", Invalid("entry fee %d does not match", 10), KindInvalidArgument},
		{"unavailable", Unavailable("get user", errors.New("conn refused")), KindUnavailable},
		{"draw full", ErrDrawFull, KindDrawFull},
		{"already completed", ErrAlreadyCompleted, KindAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Unavailable("insert participation", cause)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Retryable(err))
	assert.False(t, Retryable(ErrDrawFull))
}
