package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"fieldsync/internal/fieldsync"
	"fieldsync/internal/model"
)

var _ fieldsync.Gateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the sheet web service: one GET endpoint switched by
// the action query parameter, and a POST endpoint that upserts a record.
type HTTPGateway struct {
	client *resty.Client
	url    string
	logger fieldsync.Logger
	clock  fieldsync.Clock
}

// NewHTTPGateway creates a gateway for the service at url. Requests are
// never retried; timeout bounds each one.
func NewHTTPGateway(url string, timeout time.Duration, logger fieldsync.Logger, clock fieldsync.Clock) *HTTPGateway {
	if logger == nil {
		logger = fieldsync.NewNopLogger()
	}
	if clock == nil {
		clock = fieldsync.RealClock{}
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &HTTPGateway{client: client, url: url, logger: logger, clock: clock}
}

// ListLocations implements fieldsync.Gateway.
func (g *HTTPGateway) ListLocations(ctx context.Context) ([]string, error) {
	const op = "list locations"

	body, err := g.get(ctx, op, map[string]string{"action": "getSheetNames"})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []string{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fieldsync.NewProtocolError(op, fmt.Errorf("expected an array of names: %w", err))
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		if json.Unmarshal(item, &name) == nil && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// FetchRecords implements fieldsync.Gateway.
func (g *HTTPGateway) FetchRecords(ctx context.Context, location string) ([]model.InspectionRecord, error) {
	const op = "fetch records"

	body, err := g.get(ctx, op, map[string]string{"action": "read", "sheetName": location})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []model.InspectionRecord{}, nil
	}
	if body[0] != '[' {
		return nil, fieldsync.NewProtocolError(op, errors.New("expected an array of records"))
	}

	records := model.DecodeRecords(body)
	g.logger.Debug("records fetched", "location", location, "count", len(records))
	return records, nil
}

// SaveRecord implements fieldsync.Gateway.
func (g *HTTPGateway) SaveRecord(ctx context.Context, record model.InspectionRecord, location string) (fieldsync.Ack, error) {
	const op = "save record"

	payload := record.Clone()
	payload.SheetName = location

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(g.url)
	body, err := g.check(op, resp, err)
	if err != nil {
		return fieldsync.Ack{}, err
	}

	g.logger.Debug("record saved remotely", "id", record.ID, "location", location)
	return fieldsync.Ack{Raw: body}, nil
}

// get issues a GET with a cache-busting timestamp.
func (g *HTTPGateway) get(ctx context.Context, op string, params map[string]string) ([]byte, error) {
	params["t"] = strconv.FormatInt(g.clock.Now().UnixMilli(), 10)

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(g.url)
	return g.check(op, resp, err)
}

// check classifies a response. It returns nil for an empty body, which
// the service sends when it has nothing to say.
func (g *HTTPGateway) check(op string, resp *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, fieldsync.NewTransportError(op, err)
	}
	if !resp.IsSuccess() {
		return nil, fieldsync.NewTransportError(op, fmt.Errorf("unexpected status %s", resp.Status()))
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fieldsync.NewProtocolError(op, errors.New("response is not JSON"))
	}
	if msg, ok := remoteFailure(body); ok {
		g.logger.Warn("remote reported an error", "op", op, "message", msg)
		return nil, fieldsync.NewRemoteError(op, msg)
	}
	return body, nil
}

// remoteFailure recognizes {"result":"error","error":...}.
func remoteFailure(body []byte) (string, bool) {
	if body[0] != '{' {
		return "", false
	}
	var payload struct {
		Result string `json:"result"`
		Error  any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Result != "error" {
		return "", false
	}
	switch e := payload.Error.(type) {
	case string:
		return e, true
	case nil:
		return "remote reported an error", true
	default:
		return fmt.Sprint(e), true
	}
}
