package middleware

import (
	"net/http"

	"github.com/angelmondragon/scanform-backend/api/responses"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/logger"
)

// FeatureGate answers FEATURE_DISABLED for every request while enabled is false.
func FeatureGate(enabled bool, feature string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeFeatureDisabled, feature+" is disabled"))
		})
	}
}
