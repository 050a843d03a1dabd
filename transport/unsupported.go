package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

const KindBinary = core.TransportKindBinary

// UnsupportedTransport stands in for transport kinds that are not
// implemented, such as binary multipart uploads. Every request fails without
// touching the network.
type UnsupportedTransport struct {
	kind   string
	reason string
}

func NewUnsupportedTransport(kind string, reason string) *UnsupportedTransport {
	return &UnsupportedTransport{
		kind:   normalizeKind(kind),
		reason: strings.TrimSpace(reason),
	}
}

func (t *UnsupportedTransport) Kind() string {
	if t == nil {
		return ""
	}
	return t.kind
}

func (t *UnsupportedTransport) Request(_ context.Context, req core.Request) (core.Response, error) {
	if t == nil {
		return core.Response{}, transportError(
			"transport: transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	message := fmt.Sprintf("transport: %s transport is not implemented", t.kind)
	if t.reason != "" {
		message += ": " + t.reason
	}
	return core.Response{}, core.NewUnsupportedOperationError(message, map[string]any{
		"kind":     t.kind,
		"host":     req.Host,
		"endpoint": req.Endpoint,
	})
}

func binaryUnsupported(kind string, req core.Request) error {
	return core.NewUnsupportedOperationError("transport: binary requests are not implemented", map[string]any{
		"kind":     kind,
		"host":     req.Host,
		"endpoint": req.Endpoint,
	})
}

var _ core.Transport = (*UnsupportedTransport)(nil)
