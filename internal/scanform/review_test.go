package scanform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/pkg/connect"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
)

func seedReviewFixture(t *testing.T, h *harness) {
	t.Helper()
	refunded := purchased(2, "0")
	refunded.Refund = []byte(`{"status":"complete"}`)
	h.shipment(t, 7, "0", "2024-03-10", mainStreet, purchased(1, "0"), refunded, purchased(3, "0"))
	h.meta(t, 7, metastore.KeyScanForms, []Entry{entry("sf_1", "2024-03-01T10:00:00Z", 3)})
	h.shipment(t, 8, "0", "2024-03-01", mainStreet, purchased(5, "0"))
}

func TestReviewClassifiesLocally(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) { p.Remote = nil })
	seedReviewFixture(t, h)

	result, err := h.svc.Review(context.Background(), []int64{1, 2, 3, 4, 5, 1})
	require.NoError(t, err)
	assert.Equal(t, ReviewResult{
		Eligible:       []int64{1},
		AlreadyScanned: []int64{3},
		NotFound:       []int64{4},
		InvalidSite:    []int64{2, 5},
	}, result)
}

func TestReviewRemoteOverridesEligibleSubset(t *testing.T) {
	h := newHarness(t)
	seedReviewFixture(t, h)

	var reviewed []int64
	h.remote.review = func(_ context.Context, ids []int64) (*connect.Review, error) {
		reviewed = ids
		return &connect.Review{AlreadyScanned: []int64{1}, NotFound: []int64{4}}, nil
	}

	result, err := h.svc.Review(context.Background(), []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, reviewed, "only locally eligible labels go to the remote API")
	assert.Equal(t, []int64{}, result.Eligible)
	assert.Equal(t, []int64{1, 3}, result.AlreadyScanned)
	assert.Equal(t, []int64{4}, result.NotFound)
	assert.Equal(t, []int64{2}, result.InvalidSite)
}

func TestReviewRemoteFailure(t *testing.T) {
	h := newHarness(t)
	seedReviewFixture(t, h)
	h.remote.review = func(context.Context, []int64) (*connect.Review, error) {
		return nil, &connect.RemoteError{Code: "review_error", Message: "Failed to review labels"}
	}

	_, err := h.svc.Review(context.Background(), []int64{1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, map[string]string{"message": "Failed to review labels"}, typed.Details())
}

func TestReviewRequiresLabels(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Review(context.Background(), []int64{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
