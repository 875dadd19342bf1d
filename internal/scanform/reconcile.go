package scanform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/pkg/connect"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/metrics"
)

const noLabelsMessage = "No labels provided"

// RejectionDetails is returned to callers when the remote API refuses a batch.
type RejectionDetails struct {
	Message      string  `json:"message"`
	FailedLabels []int64 `json:"failed_labels"`
	ValidLabels  []int64 `json:"valid_labels"`
}

// Create submits labelIDs to the remote API and records the resulting scan
// form on every contributing order.
func (s *service) Create(ctx context.Context, labelIDs []int64) (CreateResult, error) {
	ids := uniqueLabelIDs(labelIDs)
	if len(ids) == 0 {
		return CreateResult{}, pkgerrors.New(pkgerrors.CodeValidation, noLabelsMessage)
	}
	if s.remote == nil {
		return CreateResult{}, pkgerrors.New(pkgerrors.CodeDependency, "scan form api not configured")
	}

	started := time.Now()
	form, err := s.remote.SendScanForm(ctx, ids)
	if err != nil {
		var remote *connect.RemoteError
		if errors.As(err, &remote) {
			s.metrics.ObserveCreate(metrics.OutcomeRejected, time.Since(started))
			return CreateResult{}, s.rejection(ctx, remote, ids)
		}
		s.metrics.ObserveCreate(metrics.OutcomeError, time.Since(started))
		if typed := pkgerrors.As(err); typed != nil {
			return CreateResult{}, typed
		}
		return CreateResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send scan form")
	}

	created := strings.TrimSpace(form.Created)
	if created == "" {
		created = s.clock().UTC().Format(time.RFC3339)
	}
	entry := Entry{BatchID: form.ScanFormID, PDFURL: form.FormURL, Created: created}

	batchCtx := s.logg.WithBatchID(ctx, form.ScanFormID)
	if err := s.persist(batchCtx, entry, form.OrderLabels); err != nil {
		s.metrics.ObserveCreate(metrics.OutcomeError, time.Since(started))
		return CreateResult{}, err
	}

	s.metrics.ObserveCreate(metrics.OutcomeCreated, time.Since(started))
	s.metrics.AddLabels(len(ids))
	s.logg.Info(s.logg.WithField(batchCtx, "label_count", len(ids)), "scanform.create.succeeded")

	return CreateResult{
		ScanFormID: form.ScanFormID,
		PDFURL:     form.FormURL,
		Created:    created,
		LabelCount: len(ids),
	}, nil
}

func (s *service) rejection(ctx context.Context, remote *connect.RemoteError, submitted []int64) error {
	split := ParseFailure(remote.Message, submitted)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"remote_code":   remote.Code,
		"remote_status": remote.Status,
		"failed_count":  len(split.FailedLabels),
		"valid_count":   len(split.ValidLabels),
	})
	s.logg.Warn(ctx, "scanform.create.rejected")

	return pkgerrors.New(pkgerrors.CodeBatchRejected, remote.Message).WithDetails(RejectionDetails{
		Message:      remote.Message,
		FailedLabels: split.FailedLabels,
		ValidLabels:  split.ValidLabels,
	})
}

// persist appends entry to each mapped order independently. It fails only
// when every attempted write failed.
func (s *service) persist(ctx context.Context, entry Entry, mapping []connect.OrderLabels) error {
	targets := make([]connect.OrderLabels, 0, len(mapping))
	orderIDs := make([]int64, 0, len(mapping))
	for _, m := range mapping {
		if m.OrderID <= 0 || len(m.LabelIDs) == 0 {
			s.metrics.IncPersist(metrics.PersistSkipped)
			continue
		}
		targets = append(targets, m)
		orderIDs = append(orderIDs, m.OrderID)
	}
	if len(targets) == 0 {
		return nil
	}

	known, err := s.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for scan form")
	}

	var (
		errs      error
		attempted int
		persisted int
	)
	for _, target := range targets {
		orderCtx := s.logg.WithOrderID(ctx, target.OrderID)
		if _, ok := known[target.OrderID]; !ok {
			s.metrics.IncPersist(metrics.PersistSkipped)
			s.logg.Warn(orderCtx, "scanform.persist.order_missing")
			continue
		}

		attempted++
		orderEntry := entry
		orderEntry.LabelIDs = flexIDs(uniqueLabelIDs(target.LabelIDs))
		if err := s.appendEntry(orderCtx, target.OrderID, orderEntry); err != nil {
			s.metrics.IncPersist(metrics.PersistFailed)
			s.logg.Error(orderCtx, "scanform.persist.order_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", target.OrderID, err))
			continue
		}
		s.metrics.IncPersist(metrics.PersistOK)
		persisted++
	}

	if attempted > 0 && persisted == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "persist scan form")
	}
	if errs != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"failed_orders":    len(multierr.Errors(errs)),
			"persisted_orders": persisted,
		})
		s.logg.Warn(ctx, "scanform.persist.partial")
	}
	return nil
}

// appendEntry adds entry to the order's scan form list while holding the
// order lock. Existing entries are kept verbatim.
func (s *service) appendEntry(ctx context.Context, orderID int64, entry Entry) error {
	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "scanform.persist.unlock_failed", err)
		}
	}()

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode scan form entry: %w", err)
	}

	return s.store.Mutate(ctx, orderID, metastore.KeyScanForms, func(current string, found bool) (string, error) {
		existing := []json.RawMessage{}
		if found {
			if decoded, ok := metastore.Decode[[]json.RawMessage](current); ok {
				existing = decoded
			}
		}
		existing = append(existing, encoded)
		out, err := json.Marshal(existing)
		if err != nil {
			return "", fmt.Errorf("encode scan form list: %w", err)
		}
		return string(out), nil
	})
}
