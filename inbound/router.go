package inbound

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-roundup/core"
)

const defaultMaxBodyBytes = int64(1 << 20)

type RouterOption func(*routerConfig)

type routerConfig struct {
	logger       core.Logger
	maxBodyBytes int64
	webhookPath  string
	loginPath    string
	setupPath    string
}

func WithRouterLogger(logger core.Logger) RouterOption {
	return func(cfg *routerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) RouterOption {
	return func(cfg *routerConfig) {
		if limit > 0 {
			cfg.maxBodyBytes = limit
		}
	}
}

func WithPaths(webhook string, login string, setup string) RouterOption {
	return func(cfg *routerConfig) {
		if strings.TrimSpace(webhook) != "" {
			cfg.webhookPath = webhook
		}
		if strings.TrimSpace(login) != "" {
			cfg.loginPath = login
		}
		if strings.TrimSpace(setup) != "" {
			cfg.setupPath = setup
		}
	}
}

// NewRouter mounts the dispatcher surfaces on a chi router.
func NewRouter(dispatcher *Dispatcher, opts ...RouterOption) *chi.Mux {
	cfg := routerConfig{
		logger:       glog.Nop(),
		maxBodyBytes: defaultMaxBodyBytes,
		webhookPath:  "/webhook",
		loginPath:    "/login",
		setupPath:    "/setup",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeText)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post(cfg.webhookPath, surfaceHandler(dispatcher, cfg, SurfaceWebhook))
	r.Get(cfg.loginPath, surfaceHandler(dispatcher, cfg, SurfaceLogin))
	r.Post(cfg.setupPath, surfaceHandler(dispatcher, cfg, SurfaceSetup))
	return r
}

func surfaceHandler(dispatcher *Dispatcher, cfg routerConfig, surface string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := toInboundRequest(r, surface, cfg.maxBodyBytes)
		if err != nil {
			writeError(r.Context(), w, cfg.logger, surface, err)
			return
		}
		result, err := dispatcher.Dispatch(r.Context(), req)
		if err != nil {
			writeError(r.Context(), w, cfg.logger, surface, err)
			return
		}
		writeResult(w, result)
	}
}

func toInboundRequest(r *http.Request, surface string, limit int64) (core.InboundRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return core.InboundRequest{}, inboundWrapError(err, goerrors.CategoryBadInput, "inbound: read request body",
			http.StatusBadRequest, core.ServiceErrorBadInput, nil)
	}
	if int64(len(body)) > limit {
		return core.InboundRequest{}, inboundBadInput(
			fmt.Sprintf("inbound: request body exceeds %d bytes", limit),
			map[string]any{"surface": surface},
		)
	}

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		headers[key] = strings.Join(values, ",")
	}
	query := map[string]string{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}
	return core.InboundRequest{
		Surface: surface,
		Method:  r.Method,
		Headers: headers,
		Query:   query,
		Body:    body,
		Metadata: map[string]any{
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		},
	}, nil
}

func writeResult(w http.ResponseWriter, result core.InboundResult) {
	for key, value := range result.Headers {
		w.Header().Set(key, value)
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(result.Body) > 0 && status != http.StatusNoContent {
		_, _ = w.Write(result.Body)
	}
}

// Webhook failures always answer 500 so the bank redelivers. Other surfaces
// use the status carried by the error.
func writeError(ctx context.Context, w http.ResponseWriter, logger core.Logger, surface string, err error) {
	status := http.StatusInternalServerError
	if surface != SurfaceWebhook {
		status = ErrorStatus(err, http.StatusInternalServerError)
	}
	logger.WithContext(ctx).Error("inbound request failed",
		"surface", surface,
		"status", status,
		"error_code", ErrorTextCode(err),
		"error", err,
	)

	message := http.StatusText(status)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
