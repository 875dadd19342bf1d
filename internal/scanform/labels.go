package scanform

import (
	"context"
	"regexp"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
)

var batchIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidBatchID reports whether id is safe to look up.
func ValidBatchID(id string) bool {
	return batchIDPattern.MatchString(id)
}

// Labels returns detail rows for every label on the scan form. Labels that
// no contributing order still stores are omitted.
func (s *service) Labels(ctx context.Context, batchID string) ([]LabelSummary, error) {
	if !ValidBatchID(batchID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid ScanForm ID format")
	}

	rows, err := s.store.ScanKey(ctx, metastore.KeyScanForms)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load scan forms")
	}
	batches := canonicalize(rows, batchID)
	if len(batches) == 0 || len(batches[0].summary.LabelIDs) == 0 {
		return []LabelSummary{}, nil
	}
	batch := batches[0]
	orderIDs := batch.summary.orderIDs

	bulk, err := s.loadOrderData(ctx, orderIDs, metastore.KeyLabels, metastore.KeyShipmentDates)
	if err != nil {
		return nil, err
	}
	summaries, err := s.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}

	out := []LabelSummary{}
	emitted := map[int64]struct{}{}
	for _, orderID := range orderIDs {
		order, ok := summaries[orderID]
		if !ok {
			continue
		}
		dates := decodeShipmentMap[ShipmentDate](bulk[metastore.KeyShipmentDates][orderID])
		for _, label := range decodeLabels(bulk[metastore.KeyLabels][orderID]) {
			id := label.ID()
			if _, ok := batch.labelSet[id]; !ok {
				continue
			}
			if _, done := emitted[id]; done {
				continue
			}
			emitted[id] = struct{}{}
			out = append(out, summarize(label, order, dates[shipmentKey(label.ShipmentID)].ShippingDate))
		}
	}
	return out, nil
}
