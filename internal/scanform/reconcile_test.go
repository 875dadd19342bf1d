package scanform

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/pkg/connect"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/pagination"
)

type failingStore struct {
	metastore.Store
	fail map[int64]bool
}

func (f failingStore) Mutate(ctx context.Context, orderID int64, key string, fn metastore.MutateFunc) error {
	if f.fail[orderID] {
		return errors.New("disk full")
	}
	return f.Store.Mutate(ctx, orderID, key, fn)
}

func storedEntries(t *testing.T, h *harness, orderID int64) []Entry {
	t.Helper()
	raw, err := h.store.BulkGet(context.Background(), []int64{orderID}, metastore.KeyScanForms)
	require.NoError(t, err)
	return decodeEntries(raw[orderID])
}

func TestCreatePersistsToEveryContributingOrder(t *testing.T) {
	h := newHarness(t)
	h.order(t, 7, "1007", "Ada", "Lovelace")
	h.order(t, 8, "1008", "Grace", "Hopper")
	h.meta(t, 8, metastore.KeyScanForms, []Entry{entry("sf_prev", "2024-02-01T00:00:00Z", 9)})

	h.remote.send = func(_ context.Context, ids []int64) (*connect.ScanForm, error) {
		return &connect.ScanForm{
			ScanFormID: "sf_new",
			FormURL:    "https://files.test/sf_new.pdf",
			OrderLabels: []connect.OrderLabels{
				{OrderID: 7, LabelIDs: []int64{1, 2}},
				{OrderID: 8, LabelIDs: []int64{3}},
				{OrderID: 0, LabelIDs: []int64{4}},
				{OrderID: 8, LabelIDs: nil},
				{OrderID: 99, LabelIDs: []int64{5}},
			},
		}, nil
	}

	result, err := h.svc.Create(context.Background(), []int64{1, 2, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, CreateResult{
		ScanFormID: "sf_new",
		PDFURL:     "https://files.test/sf_new.pdf",
		Created:    "2024-03-10T15:00:00Z",
		LabelCount: 3,
	}, result)
	require.Len(t, h.remote.sent, 1)
	assert.Equal(t, []int64{1, 2, 3}, h.remote.sent[0])

	seven := storedEntries(t, h, 7)
	require.Len(t, seven, 1)
	assert.Equal(t, "sf_new", seven[0].BatchID)
	assert.Equal(t, []int64{1, 2}, labelIDs(seven[0].LabelIDs))
	assert.Equal(t, "2024-03-10T15:00:00Z", seven[0].Created)

	eight := storedEntries(t, h, 8)
	require.Len(t, eight, 2)
	assert.Equal(t, "sf_prev", eight[0].BatchID)
	assert.Equal(t, []int64{3}, labelIDs(eight[1].LabelIDs))

	assert.Empty(t, storedEntries(t, h, 99))

	page, err := h.svc.History(context.Background(), pagination.Params{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "sf_new", page.Items[0].ScanFormID)
	assert.ElementsMatch(t, []int64{1, 2, 3}, page.Items[0].LabelIDs)
}

func TestCreateKeepsRemoteCreatedTimestamp(t *testing.T) {
	h := newHarness(t)
	h.remote.send = func(context.Context, []int64) (*connect.ScanForm, error) {
		return &connect.ScanForm{ScanFormID: "sf_1", Created: "2024-03-09T08:00:00Z"}, nil
	}

	result, err := h.svc.Create(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09T08:00:00Z", result.Created)
	assert.Equal(t, 1, result.LabelCount)
}

func TestCreateRejectionSplitsLabels(t *testing.T) {
	h := newHarness(t)
	h.remote.send = func(context.Context, []int64) (*connect.ScanForm, error) {
		return nil, &connect.RemoteError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "already_manifested",
			Message: "Already manifested (2): Label ID: 501 (Shipment: x), Label ID: 502 (Shipment: y)",
		}
	}

	_, err := h.svc.Create(context.Background(), []int64{501, 502, 503})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBatchRejected, typed.Code())

	details, ok := typed.Details().(RejectionDetails)
	require.True(t, ok)
	assert.Equal(t, []int64{501, 502}, details.FailedLabels)
	assert.Equal(t, []int64{503}, details.ValidLabels)
	assert.Contains(t, details.Message, "Already manifested")
}

func TestCreatePartialWriteFailureStillSucceeds(t *testing.T) {
	h := newHarness(t)
	h.order(t, 7, "1007", "Ada", "Lovelace")
	h.order(t, 8, "1008", "Grace", "Hopper")
	h.svc.store = failingStore{Store: h.store, fail: map[int64]bool{8: true}}
	h.remote.send = func(context.Context, []int64) (*connect.ScanForm, error) {
		return &connect.ScanForm{
			ScanFormID:  "sf_1",
			OrderLabels: []connect.OrderLabels{{OrderID: 7, LabelIDs: []int64{1}}, {OrderID: 8, LabelIDs: []int64{2}}},
		}, nil
	}

	_, err := h.svc.Create(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, storedEntries(t, h, 7), 1)
	assert.Empty(t, storedEntries(t, h, 8))
}

func TestCreateFailsWhenEveryWriteFails(t *testing.T) {
	h := newHarness(t)
	h.order(t, 7, "1007", "Ada", "Lovelace")
	h.svc.store = failingStore{Store: h.store, fail: map[int64]bool{7: true}}
	h.remote.send = func(context.Context, []int64) (*connect.ScanForm, error) {
		return &connect.ScanForm{
			ScanFormID:  "sf_1",
			OrderLabels: []connect.OrderLabels{{OrderID: 7, LabelIDs: []int64{1}}},
		}, nil
	}

	_, err := h.svc.Create(context.Background(), []int64{1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, noLabelsMessage, typed.Message())
	assert.Empty(t, h.remote.sent)

	_, err = h.svc.Create(context.Background(), []int64{0, -4})
	require.Error(t, err)
}

func TestCreateWithoutRemoteIsDependencyError(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) { p.Remote = nil })
	_, err := h.svc.Create(context.Background(), []int64{1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
