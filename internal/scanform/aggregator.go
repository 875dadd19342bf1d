package scanform

import (
	"context"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
)

const unknownShippingDate = "-"

// Origins returns eligible, not yet manifested labels grouped by ship-from address.
func (s *service) Origins(ctx context.Context) ([]OriginGroup, error) {
	ref := s.clock()
	minDate := s.threshold.MinDate()

	rows, err := s.store.ScanJoined(ctx, metastore.KeyShipmentDates, metastore.KeyLabels)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment dates")
	}

	candidates := make([]int64, 0, len(rows))
	datesByOrder := make(map[int64]map[string]ShipmentDate, len(rows))
	eligibleByOrder := make(map[int64]map[string]bool, len(rows))
	for _, row := range rows {
		if len(decodeLabels(row.JoinedValue)) == 0 {
			continue
		}
		dates := decodeShipmentMap[ShipmentDate](row.Value)
		eligible := shipmentEligibility(dates, minDate, ref)
		if !anyTrue(eligible) {
			continue
		}
		candidates = append(candidates, row.OrderID)
		datesByOrder[row.OrderID] = dates
		eligibleByOrder[row.OrderID] = eligible
	}
	if len(candidates) == 0 {
		return []OriginGroup{}, nil
	}

	bulk, err := s.loadOrderData(ctx, candidates, metastore.KeyLabels, metastore.KeyOrigins, metastore.KeyScanForms)
	if err != nil {
		return nil, err
	}
	manifested := manifestedLabelIDs(bulk[metastore.KeyScanForms])

	summaries, err := s.orders.FindByIDs(ctx, candidates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}

	groups := []*OriginGroup{}
	byKey := map[string]*OriginGroup{}
	for _, orderID := range candidates {
		labels := decodeLabels(bulk[metastore.KeyLabels][orderID])
		origins := decodeShipmentMap[Address](bulk[metastore.KeyOrigins][orderID])
		if len(labels) == 0 || len(origins) == 0 {
			continue
		}
		order, ok := summaries[orderID]
		if !ok {
			continue
		}

		for _, label := range labels {
			if _, done := manifested[label.ID()]; done {
				continue
			}
			if !s.eligibility.IsEligible(label) {
				continue
			}
			key := shipmentKey(label.ShipmentID)
			if !eligibleByOrder[orderID][key] {
				continue
			}
			origin, ok := origins[key]
			if !ok {
				continue
			}

			originID := OriginKey(origin)
			group, ok := byKey[originID]
			if !ok {
				group = &OriginGroup{OriginID: originID, OriginAddress: origin, Labels: []LabelSummary{}}
				byKey[originID] = group
				groups = append(groups, group)
			}
			group.Labels = append(group.Labels, summarize(label, order, datesByOrder[orderID][key].ShippingDate))
			group.LabelCount++
		}
	}

	out := make([]OriginGroup, 0, len(groups))
	for _, group := range groups {
		out = append(out, *group)
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"candidate_orders": len(candidates),
		"origin_groups":    len(out),
	}), "scanform.origins.built")
	return out, nil
}

// loadOrderData fetches each key for the same order set, one query per key.
func (s *service) loadOrderData(ctx context.Context, orderIDs []int64, keys ...string) (map[string]map[int64]string, error) {
	out := make(map[string]map[int64]string, len(keys))
	for _, key := range keys {
		values, err := s.store.BulkGet(ctx, orderIDs, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+key)
		}
		out[key] = values
	}
	return out, nil
}

// manifestedLabelIDs flattens every label id on any stored scan form entry.
func manifestedLabelIDs(rawByOrder map[int64]string) map[int64]struct{} {
	out := map[int64]struct{}{}
	for _, raw := range rawByOrder {
		for _, entry := range decodeEntries(raw) {
			for _, id := range entry.LabelIDs {
				out[id.Int64()] = struct{}{}
			}
		}
	}
	return out
}

func summarize(label Label, order orderSummary, shippingDate string) LabelSummary {
	if shippingDate == "" {
		shippingDate = unknownShippingDate
	}
	return LabelSummary{
		LabelID:      label.ID(),
		OrderID:      order.ID,
		OrderNumber:  order.Number,
		ShippingName: order.ShippingName,
		Tracking:     label.Tracking.String(),
		ServiceName:  label.ServiceName,
		Created:      label.Created,
		ShippingDate: shippingDate,
	}
}

func anyTrue(values map[string]bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
