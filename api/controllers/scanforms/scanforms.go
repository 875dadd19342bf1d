package scanforms

import (
	"net/http"

	"github.com/angelmondragon/scanform-backend/api/responses"
	"github.com/angelmondragon/scanform-backend/api/validators"
	"github.com/angelmondragon/scanform-backend/internal/scanform"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/logger"
	"github.com/angelmondragon/scanform-backend/pkg/pagination"
	"github.com/angelmondragon/scanform-backend/pkg/types"
)

const noLabelsMessage = "No labels provided"

type labelIDsRequest struct {
	LabelIDs []types.FlexInt64 `json:"label_ids" validate:"dive,gt=0"`
}

func (r labelIDsRequest) ids() []int64 {
	out := make([]int64, 0, len(r.LabelIDs))
	for _, id := range r.LabelIDs {
		out = append(out, id.Int64())
	}
	return out
}

type originsResponse struct {
	Success bool                   `json:"success"`
	Origins []scanform.OriginGroup `json:"origins"`
}

type reviewResponse struct {
	Success bool `json:"success"`
	scanform.ReviewResult
}

type createResponse struct {
	Success  bool                  `json:"success"`
	ScanForm scanform.CreateResult `json:"scan_form"`
}

type historyResponse struct {
	Success    bool                    `json:"success"`
	ScanForms  []scanform.BatchSummary `json:"scan_forms"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	PerPage    int                     `json:"per_page"`
	TotalPages int                     `json:"total_pages"`
}

type labelsResponse struct {
	Success bool                    `json:"success"`
	Labels  []scanform.LabelSummary `json:"labels"`
}

// Origins lists eligible labels grouped by ship-from address.
func Origins(svc scanform.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan form service unavailable"))
			return
		}

		groups, err := svc.Origins(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if groups == nil {
			groups = []scanform.OriginGroup{}
		}
		responses.WriteSuccess(w, originsResponse{Success: true, Origins: groups})
	}
}

// Review classifies the submitted labels without creating a batch.
func Review(svc scanform.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan form service unavailable"))
			return
		}

		ids, err := decodeLabelIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Review(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reviewResponse{Success: true, ReviewResult: result})
	}
}

// Create submits the labels to the remote API and records the resulting batch.
func Create(svc scanform.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan form service unavailable"))
			return
		}

		ids, err := decodeLabelIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, createResponse{Success: true, ScanForm: result})
	}
}

// History returns one page of recorded batches, newest first.
func History(svc scanform.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan form service unavailable"))
			return
		}

		params, err := validators.ParsePageParams(r, pagination.MaxPerPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := result.Items
		if items == nil {
			items = []scanform.BatchSummary{}
		}
		responses.WriteSuccess(w, historyResponse{
			Success:    true,
			ScanForms:  items,
			Total:      result.Total,
			Page:       result.Page,
			PerPage:    result.PerPage,
			TotalPages: result.TotalPages,
		})
	}
}

// Labels lists the labels manifested under one batch.
func Labels(svc scanform.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan form service unavailable"))
			return
		}

		batchID, err := validators.PathIdentifier(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Invalid ScanForm ID format"))
			return
		}

		labels, err := svc.Labels(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if labels == nil {
			labels = []scanform.LabelSummary{}
		}
		responses.WriteSuccess(w, labelsResponse{Success: true, Labels: labels})
	}
}

func decodeLabelIDs(r *http.Request) ([]int64, error) {
	var req labelIDsRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	if len(req.LabelIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, noLabelsMessage)
	}
	return req.ids(), nil
}
