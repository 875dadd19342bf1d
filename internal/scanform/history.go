package scanform

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/pagination"
)

// canonicalBatch merges every per-order copy of one scan form.
type canonicalBatch struct {
	summary   BatchSummary
	labelSet  map[int64]struct{}
	orderSet  map[int64]struct{}
	createdAt time.Time
	parsed    bool
}

// History pages through canonical scan forms, newest first. Origin addresses
// are resolved only for the records on the requested page.
func (s *service) History(ctx context.Context, params pagination.Params) (HistoryPage, error) {
	params = s.historyParams(params)

	rows, err := s.store.ScanKey(ctx, metastore.KeyScanForms)
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load scan forms")
	}
	batches := canonicalize(rows, "")
	sortNewestFirst(batches, s.clock())

	total := len(batches)
	page := HistoryPage{
		Items:      []BatchSummary{},
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: pagination.TotalPages(total, params.PerPage),
	}

	window := pagination.Slice(batches, params)
	if len(window) == 0 {
		return page, nil
	}

	orderIDs := []int64{}
	for _, batch := range window {
		orderIDs = append(orderIDs, batch.summary.orderIDs...)
	}
	bulk, err := s.loadOrderData(ctx, orderIDs, metastore.KeyLabels, metastore.KeyOrigins)
	if err != nil {
		return HistoryPage{}, err
	}

	for _, batch := range window {
		item := batch.summary
		item.LabelCount = len(item.LabelIDs)
		item.OriginAddress = resolveOrigin(batch, bulk[metastore.KeyLabels], bulk[metastore.KeyOrigins])
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func (s *service) historyParams(p pagination.Params) pagination.Params {
	if p.PerPage <= 0 {
		p.PerPage = s.perPage
	}
	if p.PerPage > s.maxPerPage {
		p.PerPage = s.maxPerPage
	}
	return p.Normalize()
}

// canonicalize walks (order, entry) pairs in row order and merges entries
// sharing a batch id. When only is set every other batch id is ignored.
func canonicalize(rows []metastore.Row, only string) []*canonicalBatch {
	out := []*canonicalBatch{}
	byID := map[string]*canonicalBatch{}
	for _, row := range rows {
		for _, entry := range decodeEntries(row.Value) {
			id := strings.TrimSpace(entry.BatchID)
			if only != "" && id != only {
				continue
			}
			batch, ok := byID[id]
			if !ok {
				batch = &canonicalBatch{
					summary: BatchSummary{
						ScanFormID: id,
						PDFURL:     entry.PDFURL,
						Created:    entry.Created,
						LabelIDs:   []int64{},
					},
					labelSet: map[int64]struct{}{},
					orderSet: map[int64]struct{}{},
				}
				byID[id] = batch
				out = append(out, batch)
			}
			for _, labelID := range labelIDs(entry.LabelIDs) {
				if _, seen := batch.labelSet[labelID]; seen {
					continue
				}
				batch.labelSet[labelID] = struct{}{}
				batch.summary.LabelIDs = append(batch.summary.LabelIDs, labelID)
			}
			if _, seen := batch.orderSet[row.OrderID]; !seen {
				batch.orderSet[row.OrderID] = struct{}{}
				batch.summary.orderIDs = append(batch.summary.orderIDs, row.OrderID)
			}
		}
	}
	return out
}

// sortNewestFirst orders by created descending; unparseable timestamps sort last
// and ties keep discovery order.
func sortNewestFirst(batches []*canonicalBatch, ref time.Time) {
	for _, batch := range batches {
		batch.createdAt, batch.parsed = parseTimestamp(batch.summary.Created, ref)
	}
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if a.parsed != b.parsed {
			return a.parsed
		}
		return a.createdAt.After(b.createdAt)
	})
}

// resolveOrigin tries each contributing order until one of the batch's labels
// leads to a stored origin address.
func resolveOrigin(batch *canonicalBatch, labelsByOrder, originsByOrder map[int64]string) *Address {
	for _, orderID := range batch.summary.orderIDs {
		labels := decodeLabels(labelsByOrder[orderID])
		if len(labels) == 0 {
			continue
		}
		origins := decodeShipmentMap[Address](originsByOrder[orderID])
		if len(origins) == 0 {
			continue
		}
		for _, label := range labels {
			if _, ok := batch.labelSet[label.ID()]; !ok {
				continue
			}
			if origin, ok := origins[shipmentKey(label.ShipmentID)]; ok {
				return &origin
			}
		}
	}
	return nil
}
