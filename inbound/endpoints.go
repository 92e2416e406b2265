package inbound

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/webhooks"
)

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

type TransactionService interface {
	HandleTransaction(ctx context.Context, body []byte) (core.Outcome, error)
}

type LoginService interface {
	BeginLogin(ctx context.Context) (core.LoginRedirect, error)
	CompleteLogin(ctx context.Context, code string, state string) (core.SetupPage, error)
}

type SetupService interface {
	ConfirmSetup(ctx context.Context, req core.SetupRequest) (core.SetupResult, error)
}

// WebhookHandler feeds transaction notifications to the round-up engine.
// Deliveries pass through the processor's ledger when one is configured.
type WebhookHandler struct {
	service   TransactionService
	processor *webhooks.Processor
}

func NewWebhookHandler(service TransactionService, ledger webhooks.DeliveryLedger) *WebhookHandler {
	handler := &WebhookHandler{service: service}
	if ledger != nil {
		handler.processor = webhooks.NewProcessor(ledger, webhooks.HandlerFunc(handler.run))
	}
	return handler
}

func (*WebhookHandler) Surface() string {
	return SurfaceWebhook
}

func (h *WebhookHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, inboundInternal("inbound: webhook handler is not configured", nil)
	}
	if h.processor != nil {
		return h.processor.Process(ctx, req)
	}
	return h.run(ctx, req)
}

func (h *WebhookHandler) run(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	outcome, err := h.service.HandleTransaction(ctx, req.Body)
	if err != nil {
		return core.InboundResult{}, err
	}
	metadata := map[string]any{
		"transaction_id": outcome.TransactionID,
		"transferred":    outcome.Transferred,
	}
	if !outcome.Transferred {
		metadata["reason"] = outcome.Reason
		return core.InboundResult{Accepted: true, StatusCode: http.StatusNoContent, Metadata: metadata}, nil
	}
	metadata["amount"] = outcome.Amount
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": contentTypeText},
		Body:       []byte("ok"),
		Metadata:   metadata,
	}, nil
}

// LoginHandler starts the authorization redirect, or completes it and renders
// the setup page when the callback carries a code.
type LoginHandler struct {
	service  LoginService
	renderer *SetupPageRenderer
}

func NewLoginHandler(service LoginService, renderer *SetupPageRenderer) *LoginHandler {
	if renderer == nil {
		renderer = NewSetupPageRenderer()
	}
	return &LoginHandler{service: service, renderer: renderer}
}

func (*LoginHandler) Surface() string {
	return SurfaceLogin
}

func (h *LoginHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, inboundInternal("inbound: login handler is not configured", nil)
	}
	if denied := strings.TrimSpace(req.Query["error"]); denied != "" {
		return core.InboundResult{}, inboundBadInput("inbound: authorization was not granted", map[string]any{"error": denied})
	}

	code := strings.TrimSpace(req.Query["code"])
	if code == "" {
		redirect, err := h.service.BeginLogin(ctx)
		if err != nil {
			return core.InboundResult{}, err
		}
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusFound,
			Headers:    map[string]string{"Location": redirect.URL},
		}, nil
	}

	page, err := h.service.CompleteLogin(ctx, code, req.Query["state"])
	if err != nil {
		return core.InboundResult{}, err
	}
	body, err := h.renderer.Render(page)
	if err != nil {
		return core.InboundResult{}, inboundInternal("inbound: render setup page", map[string]any{"user_id": page.UserID})
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": contentTypeHTML},
		Body:       body,
		Metadata:   map[string]any{"user_id": page.UserID},
	}, nil
}

// SetupHandler accepts the URL-encoded setup form.
type SetupHandler struct {
	service SetupService
}

func NewSetupHandler(service SetupService) *SetupHandler {
	return &SetupHandler{service: service}
}

func (*SetupHandler) Surface() string {
	return SurfaceSetup
}

func (h *SetupHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, inboundInternal("inbound: setup handler is not configured", nil)
	}
	setup, err := ParseSetupForm(req.Body)
	if err != nil {
		return core.InboundResult{}, err
	}
	result, err := h.service.ConfirmSetup(ctx, setup)
	if err != nil {
		return core.InboundResult{}, err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": contentTypeText},
		Body:       []byte(result.Message()),
		Metadata: map[string]any{
			"user_id":         result.User.UserID,
			"webhook_created": result.WebhookCreated,
		},
	}, nil
}

// ParseSetupForm decodes the setup form fields. Field presence is checked by
// the service so every missing field is reported together.
func ParseSetupForm(body []byte) (core.SetupRequest, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.SetupRequest{}, inboundBadInput("inbound: setup form is empty", nil)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return core.SetupRequest{}, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: setup form is malformed",
			http.StatusBadRequest,
			core.ServiceErrorBadInput,
			nil,
		)
	}
	return core.SetupRequest{
		UserID:      strings.TrimSpace(values.Get("userId")),
		AccessToken: strings.TrimSpace(values.Get("accessToken")),
		AccountID:   strings.TrimSpace(values.Get("accountId")),
		ContainerID: strings.TrimSpace(values.Get("potId")),
	}, nil
}

var (
	_ core.InboundHandler = (*WebhookHandler)(nil)
	_ core.InboundHandler = (*LoginHandler)(nil)
	_ core.InboundHandler = (*SetupHandler)(nil)
)
