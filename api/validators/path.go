package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
)

// PathIdentifier reads a chi URL param and requires it to match ^[A-Za-z0-9_]+$.
func PathIdentifier(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, key))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" is required").WithDetails(map[string]string{key: "is required"})
	}
	if err := validate.Var(value, "identifier"); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key).WithDetails(map[string]string{key: "must contain only letters, digits and underscores"})
	}
	return value, nil
}
