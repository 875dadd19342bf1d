package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
)

type labelIDsBody struct {
	LabelIDs []int64 `json:"label_ids" validate:"dive,gt=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label_ids":[1,2]}`))
	var body labelIDsBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, []int64{1, 2}, body.LabelIDs)
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndBadIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"labels":[1]}`))
	var body labelIDsBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label_ids":[0]}`))
	err = DecodeJSONBody(req, &body)
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["label_ids[0]"])
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=abc&size=500", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	def, err := ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, def)

	_, err = ParseQueryInt(req, "per_page", 20, 1, 100)
	require.Error(t, err)

	_, err = ParseQueryInt(req, "size", 20, 1, 100)
	require.Error(t, err)
}

func TestPathIdentifier(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"sf_ABC123", true},
		{"bad-id", false},
		{"../etc", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("batch_id", tt.value)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

		got, err := PathIdentifier(req, "batch_id")
		if tt.ok {
			require.NoError(t, err, tt.value)
			assert.Equal(t, tt.value, got)
			continue
		}
		require.Error(t, err, tt.value)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}
