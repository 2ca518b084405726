package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", NewValidationError("items", "at least one item is required"), KindValidation},
		{"wrapped not found", fmt.Errorf("load: %w", NewNotFoundError("order", 7)), KindNotFound},
		{"stock", NewInsufficientStockError(1, 0, 2), KindInsufficientStock},
		{"plain error", stderrors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("get order: %w", NewNotFoundError("order", 3))

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
}

func TestInternal_KeepsAppErrors(t *testing.T) {
	conflict := NewConflictError("rating already exists")
	assert.Same(t, conflict, Internal(conflict))

	wrapped := Internal(stderrors.New("connection reset"))
	assert.Equal(t, KindInternal, wrapped.Kind)
	assert.Equal(t, "internal error", wrapped.Message)
	assert.Nil(t, Internal(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindInsufficientStock, http.StatusBadRequest},
		{KindInvalidTransition, http.StatusBadRequest},
		{KindInvalidState, http.StatusBadRequest},
		{KindInvalidInput, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestDetailsOf(t *testing.T) {
	err := NewValidationErrors([]FieldError{
		{Field: "items[0].quantity", Message: "quantity must be positive"},
		{Field: "seller_id", Message: "seller_id is required"},
	})

	assert.Equal(t, "validation failed", err.Message)
	assert.Len(t, DetailsOf(err), 2)
	assert.Nil(t, DetailsOf(stderrors.New("x")))
}
