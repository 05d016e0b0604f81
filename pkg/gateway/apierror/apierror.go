// Package apierror maps engine errors onto HTTP responses.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/vt-labs/tutor-live/pkg/core"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError converts any error into a canonical *core.Error plus HTTP status.
func FromError(err error) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:    core.ErrTransport,
			Message: "request timeout",
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:    core.ErrTransport,
			Message: "request cancelled",
			Code:    "cancelled",
		}, http.StatusRequestTimeout
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		return &out, StatusFromType(coreErr.Type)
	}

	return &core.Error{
		Type:    core.ErrTransport,
		Message: "internal error",
	}, http.StatusInternalServerError
}

func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrSessionAlreadyActive, core.ErrInvalidState, core.ErrSessionNotReady:
		return http.StatusConflict
	case core.ErrTransportConnectFailed:
		return http.StatusBadGateway
	case core.ErrMalformedDataPacket, core.ErrInvalidConfig:
		return http.StatusBadRequest
	case core.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
