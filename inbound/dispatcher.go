package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
)

const (
	SurfaceWebhook = "webhook"
	SurfaceLogin   = "login"
	SurfaceSetup   = "setup"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// Dispatcher routes inbound requests to the handler registered for their surface.
type Dispatcher struct {
	Verifier Verifier

	mu       sync.RWMutex
	handlers map[string]core.InboundHandler
}

func NewDispatcher(verifier Verifier) *Dispatcher {
	return &Dispatcher{
		Verifier: verifier,
		handlers: map[string]core.InboundHandler{},
	}
}

func (d *Dispatcher) Register(handler core.InboundHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	surface := normalizeSurface(handler.Surface())
	if !isSupportedSurface(surface) {
		return inboundBadInput(
			fmt.Sprintf("inbound: unsupported surface %q", surface),
			map[string]any{"surface": surface},
		)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[string]core.InboundHandler{}
	}
	if _, exists := d.handlers[surface]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for surface %q", surface),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.ServiceErrorBadInput,
			map[string]any{"surface": surface},
		)
	}
	d.handlers[surface] = handler
	return nil
}

// Dispatch runs the surface handler. Handler errors that already carry a
// go-errors envelope are returned unchanged so their status survives.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if d == nil {
		return core.InboundResult{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	req.Surface = normalizeSurface(req.Surface)
	if !isSupportedSurface(req.Surface) {
		return core.InboundResult{}, inboundBadInput(
			fmt.Sprintf("inbound: unsupported surface %q", req.Surface),
			map[string]any{"surface": req.Surface},
		)
	}
	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
					Accepted:   false,
					StatusCode: http.StatusUnauthorized,
					Metadata:   map[string]any{"surface": req.Surface, "rejected": true},
				}, inboundWrapError(
					err,
					goerrors.CategoryAuth,
					"inbound: request verification failed",
					http.StatusUnauthorized,
					core.ServiceErrorUnauthorized,
					map[string]any{"surface": req.Surface},
				)
		}
	}

	handler := d.handlerFor(req.Surface)
	if handler == nil {
		return core.InboundResult{}, inboundError(
			fmt.Sprintf("inbound: no handler registered for surface %q", req.Surface),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.ServiceErrorNotFound,
			map[string]any{"surface": req.Surface},
		)
	}
	result, err := handler.Handle(ctx, req)
	if err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return result, err
		}
		return result, inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: handler execution failed",
			http.StatusInternalServerError,
			core.ServiceErrorOperationFailed,
			map[string]any{"surface": req.Surface},
		)
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["surface"] = req.Surface
	return result, nil
}

func (d *Dispatcher) handlerFor(surface string) core.InboundHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeSurface(surface)]
}

func normalizeSurface(surface string) string {
	return strings.TrimSpace(strings.ToLower(surface))
}

func isSupportedSurface(surface string) bool {
	switch normalizeSurface(surface) {
	case SurfaceWebhook, SurfaceLogin, SurfaceSetup:
		return true
	default:
		return false
	}
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
