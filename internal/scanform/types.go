package scanform

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/scanform-backend/internal/metastore"
	"github.com/angelmondragon/scanform-backend/pkg/types"
)

// Label is one purchased shipping label as stored in an order's label list.
type Label struct {
	LabelID     types.FlexInt64   `json:"label_id"`
	ShipmentID  types.FlexString  `json:"shipment_id"`
	Status      string            `json:"status"`
	CarrierID   string            `json:"carrier_id"`
	Tracking    types.FlexString  `json:"tracking"`
	ServiceName string            `json:"service_name"`
	Created     json.RawMessage   `json:"created,omitempty"`
	ProductIDs  []types.FlexInt64 `json:"product_ids,omitempty"`
	Refund      json.RawMessage   `json:"refund,omitempty"`
}

// ID returns the label id as a plain integer.
func (l Label) ID() int64 {
	return l.LabelID.Int64()
}

// UnmarshalJSON also reads the shipment id from "id", the key older label
// lists use.
func (l *Label) UnmarshalJSON(data []byte) error {
	type plain Label
	var aux struct {
		plain
		LegacyShipmentID types.FlexString `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Label(aux.plain)
	if l.ShipmentID.String() == "" {
		l.ShipmentID = aux.LegacyShipmentID
	}
	return nil
}

// Refunded reports whether any refund object is attached, whatever its status.
func (l Label) Refunded() bool {
	trimmed := bytes.TrimSpace(l.Refund)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Address is a ship-from snapshot recorded per shipment.
type Address struct {
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Address  string `json:"address"`
	Address2 string `json:"address_2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

// ShipmentDate is the scheduled ship date of one shipment.
type ShipmentDate struct {
	ShippingDate string `json:"shipping_date"`
}

// Entry is one order's copy of a created scan form. Every contributing order
// stores the same batch id with only its own label ids.
type Entry struct {
	BatchID  string            `json:"batch_id"`
	PDFURL   string            `json:"pdf_url"`
	Created  string            `json:"created"`
	LabelIDs []types.FlexInt64 `json:"label_ids"`
}

// UnmarshalJSON also reads the batch id from "scan_form_id", the key older
// entries use. Entries are always written back with "batch_id".
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var aux struct {
		plain
		LegacyBatchID string `json:"scan_form_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Entry(aux.plain)
	if e.BatchID == "" {
		e.BatchID = aux.LegacyBatchID
	}
	return nil
}

// LabelSummary is the row shown for a label in origin groups and batch detail.
type LabelSummary struct {
	LabelID      int64           `json:"label_id"`
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	ShippingName string          `json:"shipping_name"`
	Tracking     string          `json:"tracking"`
	ServiceName  string          `json:"service_name"`
	Created      json.RawMessage `json:"created"`
	ShippingDate string          `json:"shipping_date"`
}

// OriginGroup collects eligible labels sharing one ship-from address.
type OriginGroup struct {
	OriginID      string         `json:"origin_id"`
	OriginAddress Address        `json:"origin_address"`
	Labels        []LabelSummary `json:"labels"`
	LabelCount    int            `json:"label_count"`
}

// BatchSummary is the canonical view of a scan form across all its copies.
type BatchSummary struct {
	ScanFormID    string   `json:"scan_form_id"`
	PDFURL        string   `json:"pdf_url"`
	Created       string   `json:"created"`
	LabelCount    int      `json:"label_count"`
	LabelIDs      []int64  `json:"label_ids"`
	OriginAddress *Address `json:"origin_address"`

	orderIDs []int64
}

// OrderIDs lists the orders holding a copy, in discovery order.
func (b BatchSummary) OrderIDs() []int64 {
	return append([]int64(nil), b.orderIDs...)
}

// HistoryPage is one page of canonical batches.
type HistoryPage struct {
	Items      []BatchSummary
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// ReviewResult classifies submitted label ids.
type ReviewResult struct {
	Eligible       []int64 `json:"eligible"`
	AlreadyScanned []int64 `json:"already_scanned"`
	NotFound       []int64 `json:"not_found"`
	InvalidSite    []int64 `json:"invalid_site"`
}

// CreateResult describes a freshly created scan form.
type CreateResult struct {
	ScanFormID string `json:"scan_form_id"`
	PDFURL     string `json:"pdf_url"`
	Created    string `json:"created"`
	LabelCount int    `json:"label_count"`
}

// Reconciliation splits submitted label ids after a rejected create call.
type Reconciliation struct {
	FailedLabels []int64 `json:"failed_labels"`
	ValidLabels  []int64 `json:"valid_labels"`
}

func shipmentKey(id types.FlexString) string {
	return "shipment_" + strings.TrimSpace(id.String())
}

// decodeLabels decodes a stored label list entry by entry; malformed entries
// and entries without an id are dropped.
func decodeLabels(raw string) []Label {
	entries, ok := metastore.Decode[[]json.RawMessage](raw)
	if !ok {
		return nil
	}
	labels := make([]Label, 0, len(entries))
	for _, entry := range entries {
		label, ok := metastore.Decode[Label](string(entry))
		if !ok || label.ID() <= 0 {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

// decodeShipmentMap decodes a shipment-keyed object, dropping malformed values.
func decodeShipmentMap[T any](raw string) map[string]T {
	entries, ok := metastore.Decode[map[string]json.RawMessage](raw)
	if !ok {
		return nil
	}
	out := make(map[string]T, len(entries))
	for key, entry := range entries {
		if value, ok := metastore.Decode[T](string(entry)); ok {
			out[key] = value
		}
	}
	return out
}

// decodeEntries decodes an order's scan form list, dropping entries without a
// batch id.
func decodeEntries(raw string) []Entry {
	items, ok := metastore.Decode[[]json.RawMessage](raw)
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entry, ok := metastore.Decode[Entry](string(item))
		if !ok || strings.TrimSpace(entry.BatchID) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func labelIDs(ids []types.FlexInt64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Int64())
	}
	return out
}

func flexIDs(ids []int64) []types.FlexInt64 {
	out := make([]types.FlexInt64, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.FlexInt64(id))
	}
	return out
}
