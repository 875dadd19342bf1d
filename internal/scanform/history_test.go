package scanform

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/pkg/pagination"
)

func entry(batchID, created string, ids ...int64) Entry {
	return Entry{BatchID: batchID, PDFURL: "https://files.test/" + batchID + ".pdf", Created: created, LabelIDs: flexIDs(ids)}
}

func TestHistoryMergesCopiesAcrossOrders(t *testing.T) {
	h := newHarness(t)
	h.shipment(t, 7, "0", "2024-03-01", mainStreet, purchased(1, "0"), purchased(2, "0"))
	h.shipment(t, 8, "0", "2024-03-01", mainStreet, purchased(3, "0"))
	h.meta(t, 7, metastore.KeyScanForms, []Entry{entry("sf_1", "2024-03-01T10:00:00Z", 1, 2)})
	h.meta(t, 8, metastore.KeyScanForms, []Entry{entry("sf_1", "2024-03-01T10:00:00Z", 3, 1)})

	page, err := h.svc.History(context.Background(), pagination.Params{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Equal(t, "sf_1", item.ScanFormID)
	assert.ElementsMatch(t, []int64{1, 2, 3}, item.LabelIDs)
	assert.Equal(t, 3, item.LabelCount)
	assert.ElementsMatch(t, []int64{7, 8}, item.OrderIDs())
	require.NotNil(t, item.OriginAddress)
	assert.Equal(t, mainStreet, *item.OriginAddress)
}

func TestHistorySortsNewestFirstWithUnparseableLast(t *testing.T) {
	h := newHarness(t)
	h.meta(t, 1, metastore.KeyScanForms, []Entry{
		entry("sf_old", "2024-03-01T10:00:00Z", 1),
		entry("sf_bad", "someday", 2),
	})
	h.meta(t, 2, metastore.KeyScanForms, []Entry{
		entry("sf_new", "2024-03-05 08:30:00", 3),
		entry("sf_empty", "", 4),
	})

	page, err := h.svc.History(context.Background(), pagination.Params{Page: 1, PerPage: 10})
	require.NoError(t, err)

	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ScanFormID)
	}
	require.Len(t, ids, 4)
	assert.Equal(t, []string{"sf_new", "sf_old"}, ids[:2])
	assert.ElementsMatch(t, []string{"sf_bad", "sf_empty"}, ids[2:])
}

func TestHistoryPaginationTotals(t *testing.T) {
	h := newHarness(t)
	for i := 1; i <= 5; i++ {
		h.meta(t, int64(i), metastore.KeyScanForms, []Entry{
			entry(fmt.Sprintf("sf_%d", i), fmt.Sprintf("2024-03-0%dT10:00:00Z", i), int64(i)),
		})
	}
	// A second copy of sf_3 must not inflate the total.
	h.meta(t, 6, metastore.KeyScanForms, []Entry{entry("sf_3", "2024-03-03T10:00:00Z", 60)})

	seen := 0
	for p := 1; p <= 4; p++ {
		page, err := h.svc.History(context.Background(), pagination.Params{Page: p, PerPage: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, p, page.Page)
		assert.NotNil(t, page.Items)
		seen += len(page.Items)
		if p == 4 {
			assert.Empty(t, page.Items)
		}
	}
	assert.Equal(t, 5, seen)

	first, err := h.svc.History(context.Background(), pagination.Params{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, "sf_5", first.Items[0].ScanFormID)
}

func TestHistoryClampsPageSize(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.HistoryPerPage = 3
		p.HistoryMaxPerPage = 4
	})

	page, err := h.svc.History(context.Background(), pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.PerPage)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)

	page, err = h.svc.History(context.Background(), pagination.Params{Page: 2, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 4, page.PerPage)
}

func TestHistoryOriginResolution(t *testing.T) {
	h := newHarness(t)
	h.shipment(t, 7, "0", "2024-03-01", mainStreet, purchased(1, "0"))
	h.meta(t, 7, metastore.KeyScanForms, []Entry{entry("sf_1", "2024-03-01T10:00:00Z", 1)})

	// Order 9 holds a copy but no longer stores the label; order 8 resolves it.
	h.meta(t, 9, metastore.KeyScanForms, []Entry{entry("sf_2", "2024-03-02T10:00:00Z", 5)})
	h.meta(t, 9, metastore.KeyLabels, []Label{purchased(99, "0")})
	h.shipment(t, 8, "3", "2024-03-02", mainStreet, purchased(5, "3"))
	h.meta(t, 8, metastore.KeyScanForms, []Entry{entry("sf_2", "2024-03-02T10:00:00Z", 5)})

	// Nothing resolves for sf_3.
	h.meta(t, 10, metastore.KeyScanForms, []Entry{entry("sf_3", "2024-03-03T10:00:00Z", 77)})

	page, err := h.svc.History(context.Background(), pagination.Params{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	byID := map[string]BatchSummary{}
	for _, item := range page.Items {
		byID[item.ScanFormID] = item
	}
	require.NotNil(t, byID["sf_1"].OriginAddress)
	require.NotNil(t, byID["sf_2"].OriginAddress)
	assert.Equal(t, mainStreet, *byID["sf_2"].OriginAddress)
	assert.Nil(t, byID["sf_3"].OriginAddress)
}

func TestHistoryDedupIsIdempotent(t *testing.T) {
	h := newHarness(t)
	for orderID := int64(1); orderID <= 4; orderID++ {
		h.meta(t, orderID, metastore.KeyScanForms, []Entry{entry("sf_fan", "2024-03-01T10:00:00Z", orderID*10, orderID*10+1)})
	}

	page, err := h.svc.History(context.Background(), pagination.Params{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.ElementsMatch(t, []int64{10, 11, 20, 21, 30, 31, 40, 41}, page.Items[0].LabelIDs)
}
