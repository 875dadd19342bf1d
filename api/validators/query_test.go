package validators

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/pagination"
)

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    pagination.Params
		wantErr bool
	}{
		{"defaults", "", pagination.Params{Page: 1, PerPage: 0}, false},
		{"explicit", "?page=3&per_page=50", pagination.Params{Page: 3, PerPage: 50}, false},
		{"page zero", "?page=0", pagination.Params{}, true},
		{"per page over max", "?per_page=101", pagination.Params{}, true},
		{"not numeric", "?page=two", pagination.Params{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/scan-form/history"+tt.query, nil)
			got, err := ParsePageParams(req, pagination.MaxPerPage)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
