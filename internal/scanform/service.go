package scanform

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/internal/orders"
	"github.com/angelmondragon/scanform-backend/pkg/connect"
	"github.com/angelmondragon/scanform-backend/pkg/logger"
	"github.com/angelmondragon/scanform-backend/pkg/metrics"
	"github.com/angelmondragon/scanform-backend/pkg/pagination"
)

// Service defines the scan form operations exposed to controllers.
type Service interface {
	Origins(ctx context.Context) ([]OriginGroup, error)
	Review(ctx context.Context, labelIDs []int64) (ReviewResult, error)
	Create(ctx context.Context, labelIDs []int64) (CreateResult, error)
	History(ctx context.Context, params pagination.Params) (HistoryPage, error)
	Labels(ctx context.Context, batchID string) ([]LabelSummary, error)
}

// Remote is the remote manifest API.
type Remote interface {
	SendScanForm(ctx context.Context, labelIDs []int64) (*connect.ScanForm, error)
	ReviewScanForm(ctx context.Context, labelIDs []int64) (*connect.Review, error)
}

type orderSummary = orders.Summary

// ServiceParams bundles the dependencies required to build a scan form service.
type ServiceParams struct {
	Store  metastore.Store
	Orders orders.Repository
	// Remote may be nil; Create then fails and Review stays local.
	Remote  Remote
	Locker  Locker
	Logger  *logger.Logger
	Metrics *metrics.ScanFormMetrics

	Carrier           string
	MinShipDate       time.Time
	MinShipDateOffset int
	HistoryPerPage    int
	HistoryMaxPerPage int
	Clock             func() time.Time
}

type service struct {
	store       metastore.Store
	orders      orders.Repository
	remote      Remote
	locker      Locker
	logg        *logger.Logger
	metrics     *metrics.ScanFormMetrics
	eligibility Eligibility
	threshold   Threshold
	clock       func() time.Time
	perPage     int
	maxPerPage  int
}

// NewService constructs the scan form service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	locker := params.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	perPage := params.HistoryPerPage
	if perPage <= 0 {
		perPage = pagination.DefaultPerPage
	}
	maxPerPage := params.HistoryMaxPerPage
	if maxPerPage < perPage {
		maxPerPage = pagination.MaxPerPage
	}

	return &service{
		store:       params.Store,
		orders:      params.Orders,
		remote:      params.Remote,
		locker:      locker,
		logg:        params.Logger,
		metrics:     params.Metrics,
		eligibility: Eligibility{Carrier: params.Carrier},
		threshold: Threshold{
			Fixed:      params.MinShipDate,
			OffsetDays: params.MinShipDateOffset,
			Clock:      clock,
		},
		clock:      clock,
		perPage:    perPage,
		maxPerPage: maxPerPage,
	}, nil
}
