package errors

import (
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
)

func TestValidationError_AtRow(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{name: "single record", err: NewValidationError("final_ph", "not a number"), want: "field 'final_ph': not a number"},
		{name: "bulk row", err: NewValidationError("final_ph", "not a number").AtRow(3), want: "row 3 -> field 'final_ph': not a number"},
		{name: "row without field", err: NewValidationError("", "empty row").AtRow(2), want: "row 2: empty row"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	httpErr := NewValidationError("final_ph", "not a number").AtRow(3).ToHTTPError()
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Equal(t, 3, httpErr.Meta["row"])
	assert.Equal(t, "final_ph", httpErr.Meta["field"])
}

func TestNotFoundError(t *testing.T) {
	plain := NewNotFoundError("HPHT_404").ToHTTPError()
	assert.Equal(t, http.StatusNotFound, plain.Code)
	assert.Equal(t, "HPHT_404", plain.Meta["identifier"])
	assert.NotContains(t, plain.Meta, "missing_parent")

	err := NewMissingParentError("HPHT_MH_009_Desorption", "HPHT_MH_009")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "'HPHT_MH_009_Desorption'")
	assert.Contains(t, err.Error(), "parent experiment 'HPHT_MH_009'")

	httpErr := ToHTTPError(err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(httpErr))
	withMeta := err.ToHTTPError()
	assert.Equal(t, "HPHT_MH_009_Desorption", withMeta.Meta["identifier"])
	assert.Equal(t, "HPHT_MH_009", withMeta.Meta["missing_parent"])
}
