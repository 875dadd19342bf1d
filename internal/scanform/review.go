package scanform

import (
	"context"
	"errors"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/pkg/connect"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
)

type reviewCategory int

const (
	categoryNotFound reviewCategory = iota
	categoryAlreadyScanned
	categoryInvalidSite
	categoryEligible
)

// Review classifies labelIDs without creating anything. Labels are first
// classified from stored data; the locally eligible subset is then checked by
// the remote API when one is configured, and its answer takes precedence.
// A stored label that fails eligibility is reported under invalid_site.
func (s *service) Review(ctx context.Context, labelIDs []int64) (ReviewResult, error) {
	ids := uniqueLabelIDs(labelIDs)
	if len(ids) == 0 {
		return ReviewResult{}, pkgerrors.New(pkgerrors.CodeValidation, noLabelsMessage)
	}

	categories, err := s.classifyLocally(ctx, ids)
	if err != nil {
		return ReviewResult{}, err
	}

	eligible := make([]int64, 0, len(ids))
	for _, id := range ids {
		if categories[id] == categoryEligible {
			eligible = append(eligible, id)
		}
	}
	if s.remote != nil && len(eligible) > 0 {
		remote, err := s.remote.ReviewScanForm(ctx, eligible)
		if err != nil {
			return ReviewResult{}, s.reviewFailure(ctx, err)
		}
		applyRemote(categories, eligible, remote)
	}

	result := ReviewResult{
		Eligible:       []int64{},
		AlreadyScanned: []int64{},
		NotFound:       []int64{},
		InvalidSite:    []int64{},
	}
	for _, id := range ids {
		switch categories[id] {
		case categoryEligible:
			result.Eligible = append(result.Eligible, id)
		case categoryAlreadyScanned:
			result.AlreadyScanned = append(result.AlreadyScanned, id)
		case categoryInvalidSite:
			result.InvalidSite = append(result.InvalidSite, id)
		default:
			result.NotFound = append(result.NotFound, id)
		}
	}
	return result, nil
}

func (s *service) classifyLocally(ctx context.Context, ids []int64) (map[int64]reviewCategory, error) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	labelRows, err := s.store.ScanKey(ctx, metastore.KeyLabels)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load labels")
	}
	type located struct {
		orderID int64
		label   Label
	}
	found := map[int64]located{}
	owners := []int64{}
	for _, row := range labelRows {
		owned := false
		for _, label := range decodeLabels(row.Value) {
			if _, ok := wanted[label.ID()]; !ok {
				continue
			}
			if _, dup := found[label.ID()]; dup {
				continue
			}
			found[label.ID()] = located{orderID: row.OrderID, label: label}
			owned = true
		}
		if owned {
			owners = append(owners, row.OrderID)
		}
	}

	categories := make(map[int64]reviewCategory, len(ids))
	if len(found) == 0 {
		return categories, nil
	}

	formRows, err := s.store.ScanKey(ctx, metastore.KeyScanForms)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load scan forms")
	}
	rawForms := make(map[int64]string, len(formRows))
	for _, row := range formRows {
		rawForms[row.OrderID] = row.Value
	}
	manifested := manifestedLabelIDs(rawForms)

	rawDates, err := s.store.BulkGet(ctx, owners, metastore.KeyShipmentDates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment dates")
	}

	ref := s.clock()
	minDate := s.threshold.MinDate()
	for id, loc := range found {
		if _, done := manifested[id]; done {
			categories[id] = categoryAlreadyScanned
			continue
		}
		dates := decodeShipmentMap[ShipmentDate](rawDates[loc.orderID])
		date, ok := dates[shipmentKey(loc.label.ShipmentID)]
		if s.eligibility.IsEligible(loc.label) && ok && ShipDateEligible(date.ShippingDate, minDate, ref) {
			categories[id] = categoryEligible
			continue
		}
		categories[id] = categoryInvalidSite
	}
	return categories, nil
}

// applyRemote moves every id the remote API mentioned into its category.
// Ids it did not mention stay eligible.
func applyRemote(categories map[int64]reviewCategory, submitted []int64, remote *connect.Review) {
	if remote == nil {
		return
	}
	sent := make(map[int64]struct{}, len(submitted))
	for _, id := range submitted {
		sent[id] = struct{}{}
	}
	assign := func(ids []int64, category reviewCategory) {
		for _, id := range ids {
			if _, ok := sent[id]; ok {
				categories[id] = category
			}
		}
	}
	assign(remote.NotFound, categoryNotFound)
	assign(remote.InvalidSite, categoryInvalidSite)
	assign(remote.AlreadyScanned, categoryAlreadyScanned)
	assign(remote.Eligible, categoryEligible)
}

func (s *service) reviewFailure(ctx context.Context, err error) error {
	var remote *connect.RemoteError
	if errors.As(err, &remote) {
		s.logg.Warn(s.logg.WithField(ctx, "remote_code", remote.Code), "scanform.review.remote_failed")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, remote.Message).
			WithDetails(map[string]string{"message": remote.Message})
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review scan form")
}
