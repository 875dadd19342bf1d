package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/scanform-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/scanform-backend/pkg/errors"
	"github.com/angelmondragon/scanform-backend/pkg/types"
)

const (
	scanFormPath                 = "scan-form"
	scanFormReviewPath           = "scan-form/review"
	defaultTimeout               = 30 * time.Second
	responseBodyReadLimit  int64 = 64 * 1024
	defaultRemoteErrorCode       = "scan_form_error"
	transportErrorCode           = "http_request_failed"
)

var (
	errBaseURLRequired = errors.New("connect base url is required")
	errAPIKeyRequired  = errors.New("connect api key is required")
)

// Client talks to the remote label service that builds scan forms.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client from config.
func NewClient(cfg config.ConnectConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// OrderLabels maps one order to the label ids it contributed.
type OrderLabels struct {
	OrderID  int64
	LabelIDs []int64
}

// ScanForm is a manifest the remote service accepted.
type ScanForm struct {
	ScanFormID  string
	FormURL     string
	Created     string
	OrderLabels []OrderLabels
}

// Review is the remote classification of submitted label ids.
type Review struct {
	Eligible       []int64
	AlreadyScanned []int64
	NotFound       []int64
	InvalidSite    []int64
}

// RemoteError is any rejection or failure reported for a remote call. Message
// carries the human-readable text the service returned.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type labelIDsRequest struct {
	LabelIDs []int64 `json:"label_ids"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type scanFormResponse struct {
	Error       *errorEnvelope `json:"error"`
	ScanFormID  string         `json:"scan_form_id"`
	FormURL     string         `json:"form_url"`
	Created     string         `json:"created"`
	OrderLabels []struct {
		OrderID  types.FlexInt64   `json:"order_id"`
		LabelIDs []types.FlexInt64 `json:"label_ids"`
	} `json:"order_labels"`
}

type reviewResponse struct {
	Error          *errorEnvelope    `json:"error"`
	Eligible       []types.FlexInt64 `json:"eligible"`
	AlreadyScanned []types.FlexInt64 `json:"already_scanned"`
	NotFound       []types.FlexInt64 `json:"not_found"`
	InvalidSite    []types.FlexInt64 `json:"invalid_site"`
}

// SendScanForm asks the remote service to build a manifest for labelIDs.
// Every failure, including transport errors, is returned as *RemoteError.
func (c *Client) SendScanForm(ctx context.Context, labelIDs []int64) (*ScanForm, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "connect client not configured")
	}
	if len(labelIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label ids are required")
	}

	var resp scanFormResponse
	if err := c.post(ctx, scanFormPath, labelIDs, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, remoteErrorFrom(0, resp.Error, "Failed to create ScanForm")
	}

	out := &ScanForm{
		ScanFormID:  resp.ScanFormID,
		FormURL:     resp.FormURL,
		Created:     resp.Created,
		OrderLabels: make([]OrderLabels, 0, len(resp.OrderLabels)),
	}
	for _, entry := range resp.OrderLabels {
		out.OrderLabels = append(out.OrderLabels, OrderLabels{
			OrderID:  entry.OrderID.Int64(),
			LabelIDs: plainIDs(entry.LabelIDs),
		})
	}
	return out, nil
}

// ReviewScanForm asks the remote service to classify labelIDs without creating anything.
func (c *Client) ReviewScanForm(ctx context.Context, labelIDs []int64) (*Review, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "connect client not configured")
	}
	if len(labelIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label ids are required")
	}

	var resp reviewResponse
	if err := c.post(ctx, scanFormReviewPath, labelIDs, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, remoteErrorFrom(0, resp.Error, "Failed to review labels")
	}
	return &Review{
		Eligible:       plainIDs(resp.Eligible),
		AlreadyScanned: plainIDs(resp.AlreadyScanned),
		NotFound:       plainIDs(resp.NotFound),
		InvalidSite:    plainIDs(resp.InvalidSite),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, labelIDs []int64, out any) error {
	payload, err := json.Marshal(labelIDsRequest{LabelIDs: labelIDs})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal connect request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build connect request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &RemoteError{Code: transportErrorCode, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return &RemoteError{Status: resp.StatusCode, Code: transportErrorCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{Status: resp.StatusCode, Code: "invalid_response", Message: "decode connect response: " + err.Error()}
	}
	return nil
}

// statusError reads either {"code","message"} or {"error":{"code","message"}}
// from a non-2xx body and falls back to the raw text.
func statusError(status int, body []byte) *RemoteError {
	var flat errorEnvelope
	if err := json.Unmarshal(body, &flat); err == nil && strings.TrimSpace(flat.Message) != "" {
		return remoteErrorFrom(status, &flat, "")
	}
	var nested struct {
		Error *errorEnvelope `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error != nil {
		return remoteErrorFrom(status, nested.Error, http.StatusText(status))
	}
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(status)
	}
	return &RemoteError{Status: status, Code: defaultRemoteErrorCode, Message: message}
}

func remoteErrorFrom(status int, env *errorEnvelope, fallback string) *RemoteError {
	code := strings.TrimSpace(env.Code)
	if code == "" {
		code = defaultRemoteErrorCode
	}
	message := strings.TrimSpace(env.Message)
	if message == "" {
		message = fallback
	}
	return &RemoteError{Status: status, Code: code, Message: message}
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

func plainIDs(ids []types.FlexInt64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Int64())
	}
	return out
}
