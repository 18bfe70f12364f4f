package apperror

import (
	"errors"
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
		{"validation", Validation("pbdoc_number", "is required"), KindValidation},
		{"forbidden", Forbidden("process is not in your department"), KindAuthorization},
		{"state", State("completed", "pending", "step already completed"), KindState},
		{"not found", NotFound("process", "42"), KindNotFound},
		{"wrapped", fmt.Errorf("complete step: %w", NotFound("step", "7")), KindNotFound},
		{"plain", errors.New("connection reset"), KindInfrastructure},
		{"internal", Internal(errors.New("boom"), "failed to save"), KindInfrastructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessageCarriesDetail(t *testing.T) {
	err := Validation("modality_id", "modality %s does not exist", "abc")
	assert.Equal(t, "modality_id: modality abc does not exist", err.Error())

	cause := errors.New("tcp timeout")
	wrapped := Internal(cause, "failed to load process")
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "tcp timeout")

	st := State("completed", "pending", "step already completed")
	assert.Equal(t, "completed", st.Current)
	assert.Equal(t, "pending", st.Expected)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindAuthorization))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindState))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInfrastructure))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(State("", "", "x"), KindState))
	assert.False(t, Is(nil, KindState))
}
