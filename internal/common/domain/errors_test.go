package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("load ledger: %w", NewNotFoundError("Ledger", "abc"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindConflict))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestNewOverpaymentError(t *testing.T) {
	err := NewOverpaymentError(1250)

	assert.Equal(t, KindConflict, err.Kind)
	assert.Equal(t, "OVERPAYMENT", err.Code)
	assert.Equal(t, "12.50", err.Fields["excess"])
	assert.Contains(t, err.Error(), "12.50")
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 20, Offset(2, 20))
	assert.Equal(t, 0, Offset(0, 20))
}
