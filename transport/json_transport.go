package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

const KindJSON = core.TransportKindJSON

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// JSONTransport POSTs the request parameters as one JSON object to
// https://{host}/api/{endpoint} and returns the decoded response body.
//
// Non-2xx replies that carry the service's {"error": ...} envelope are
// returned as responses, since the protocol uses them to signal states such
// as a pending authorization session. Any other non-2xx reply is a protocol
// error.
type JSONTransport struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewJSONTransport(client HTTPDoer) *JSONTransport {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &JSONTransport{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (*JSONTransport) Kind() string {
	return KindJSON
}

func (t *JSONTransport) Request(ctx context.Context, req core.Request) (core.Response, error) {
	if t == nil || t.Client == nil {
		return core.Response{}, transportError(
			"transport: json transport requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"kind": KindJSON},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Binary {
		return core.Response{}, binaryUnsupported(KindJSON, req)
	}

	endpointURL, err := EndpointURL(req.Host, req.Endpoint)
	if err != nil {
		return core.Response{}, err
	}
	meta := map[string]any{"kind": KindJSON, "host": req.Host, "endpoint": req.Endpoint}

	payload, err := json.Marshal(req.Params)
	if err != nil {
		return core.Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: encode request parameters",
			http.StatusBadRequest,
			meta,
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
	if err != nil {
		return core.Response{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			meta,
		)
	}
	for key, value := range t.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	startedAt := time.Now().UTC()
	httpRes, err := t.Client.Do(httpReq)
	if err != nil {
		return core.Response{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			meta,
		)
	}
	defer httpRes.Body.Close()
	meta["status_code"] = httpRes.StatusCode

	maxBodyBytes := t.MaxResponseBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.Response{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			meta,
		)
	}
	if int64(len(body)) > maxBodyBytes {
		meta["response_limit_b"] = maxBodyBytes
		return core.Response{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			meta,
		)
	}

	res := core.Response{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindJSON,
		},
	}

	trimmed := bytes.TrimSpace(body)
	success := httpRes.StatusCode >= 200 && httpRes.StatusCode < 300
	if len(trimmed) == 0 {
		if success {
			res.Body = core.Value("null")
			return res, nil
		}
		return res, transportError(
			fmt.Sprintf("transport: remote returned status %d", httpRes.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			meta,
		)
	}
	if !json.Valid(trimmed) {
		return res, transportError(
			"transport: response body is not valid json",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			meta,
		)
	}
	res.Body = core.Value(trimmed)
	clientError := httpRes.StatusCode >= 400 && httpRes.StatusCode < 500
	if !success && !(clientError && hasErrorEnvelope(trimmed)) {
		return res, transportError(
			fmt.Sprintf("transport: remote returned status %d", httpRes.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			meta,
		)
	}
	return res, nil
}

// EndpointURL builds https://{host}/api/{endpoint}. host may carry a port
// but no scheme or path.
func EndpointURL(host string, endpoint string) (string, error) {
	host = strings.TrimSpace(host)
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")
	if host == "" || endpoint == "" {
		return "", transportError(
			"transport: host and endpoint are required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"host": host, "endpoint": endpoint},
		)
	}
	if strings.Contains(host, "://") || strings.ContainsAny(host, "/?#@ ") {
		return "", transportError(
			"transport: host must be a bare host name",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"host": host},
		)
	}
	target := url.URL{Scheme: "https", Host: host, Path: "/api/" + endpoint}
	return target.String(), nil
}

func hasErrorEnvelope(body []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return false
	}
	raw, ok := obj["error"]
	if !ok {
		return false
	}
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.Transport = (*JSONTransport)(nil)
