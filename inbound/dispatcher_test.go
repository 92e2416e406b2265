package inbound

import (
	"context"
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
)

func TestDispatcher_RoutesBySurface(t *testing.T) {
	login := &stubInboundHandler{surface: SurfaceLogin, result: core.InboundResult{Accepted: true, StatusCode: http.StatusFound}}
	setup := &stubInboundHandler{surface: SurfaceSetup, result: core.InboundResult{Accepted: true, StatusCode: http.StatusOK}}
	dispatcher := NewDispatcher(nil)
	for _, handler := range []core.InboundHandler{login, setup} {
		if err := dispatcher.Register(handler); err != nil {
			t.Fatalf("register %s: %v", handler.Surface(), err)
		}
	}

	result, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{Surface: " LOGIN "})
	if err != nil {
		t.Fatalf("dispatch login: %v", err)
	}
	if result.StatusCode != http.StatusFound || result.Metadata["surface"] != SurfaceLogin {
		t.Fatalf("unexpected login result: %+v", result)
	}
	if login.calls != 1 || setup.calls != 0 {
		t.Fatalf("expected only login handler to run, login=%d setup=%d", login.calls, setup.calls)
	}
}

func TestDispatcher_RejectsDuplicateAndUnknownSurfaces(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	if err := dispatcher.Register(&stubInboundHandler{surface: SurfaceWebhook}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := dispatcher.Register(&stubInboundHandler{surface: SurfaceWebhook}); err == nil {
		t.Fatalf("expected duplicate surface registration error")
	}
	if err := dispatcher.Register(&stubInboundHandler{surface: "command"}); err == nil {
		t.Fatalf("expected unsupported surface error")
	}

	_, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{Surface: SurfaceSetup})
	if ErrorStatus(err, 0) != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered surface, got %v", err)
	}
}

func TestDispatcher_PreservesRichHandlerErrors(t *testing.T) {
	forbidden := goerrors.New("token mismatch", goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(core.ServiceErrorForbidden)
	dispatcher := NewDispatcher(nil)
	_ = dispatcher.Register(&stubInboundHandler{surface: SurfaceSetup, err: forbidden})

	_, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{Surface: SurfaceSetup})
	if ErrorStatus(err, 0) != http.StatusForbidden || ErrorTextCode(err) != core.ServiceErrorForbidden {
		t.Fatalf("expected forbidden envelope to pass through, got %v", err)
	}
}

func TestDispatcher_WrapsPlainHandlerErrors(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	_ = dispatcher.Register(&stubInboundHandler{surface: SurfaceWebhook, err: errors.New("boom")})

	_, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{Surface: SurfaceWebhook})
	if ErrorTextCode(err) != core.ServiceErrorOperationFailed {
		t.Fatalf("expected operation failed code, got %q", ErrorTextCode(err))
	}
	if ErrorStatus(err, 0) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", ErrorStatus(err, 0))
	}
}

func TestDispatcher_VerifierRejects(t *testing.T) {
	handler := &stubInboundHandler{surface: SurfaceWebhook}
	dispatcher := NewDispatcher(stubInboundVerifier{err: errors.New("bad signature")})
	_ = dispatcher.Register(handler)

	result, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{Surface: SurfaceWebhook})
	if err == nil {
		t.Fatalf("expected verification error")
	}
	if result.StatusCode != http.StatusUnauthorized || handler.calls != 0 {
		t.Fatalf("expected 401 without handler call, got status=%d calls=%d", result.StatusCode, handler.calls)
	}
	if ErrorTextCode(err) != core.ServiceErrorUnauthorized {
		t.Fatalf("expected unauthorized text code, got %q", ErrorTextCode(err))
	}
}

type stubInboundVerifier struct {
	err error
}

func (v stubInboundVerifier) Verify(context.Context, core.InboundRequest) error {
	return v.err
}

type stubInboundHandler struct {
	surface string
	result  core.InboundResult
	err     error
	calls   int
}

func (h *stubInboundHandler) Surface() string {
	return h.surface
}

func (h *stubInboundHandler) Handle(context.Context, core.InboundRequest) (core.InboundResult, error) {
	h.calls++
	if h.err != nil {
		return core.InboundResult{}, h.err
	}
	return h.result, nil
}
