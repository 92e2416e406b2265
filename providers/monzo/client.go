package monzo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/transport"
)

const (
	pathToken    = "/oauth2/token"
	pathAccounts = "/accounts"
	pathPots     = "/pots"
	pathWebhooks = "/webhooks"

	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

type Config struct {
	APIURL             string
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	RequestTimeout     time.Duration
}

func ConfigFromCore(cfg core.BankConfig) Config {
	return Config{
		APIURL:             cfg.APIURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: cfg.ClientSecretInBody,
		RequestTimeout:     cfg.RequestTimeout,
	}
}

// Client issues the bank API calls. It keeps no per-user state.
type Client struct {
	cfg     Config
	baseURL string
	adapter core.TransportAdapter
	signer  core.Signer
}

func NewClient(cfg Config, adapter core.TransportAdapter, signer core.Signer) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("monzo: api url must be absolute, got %q", cfg.APIURL)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("monzo: client id is required")
	}
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	if signer == nil {
		signer = core.BearerTokenSigner{}
	}
	return &Client{cfg: cfg, baseURL: base, adapter: adapter, signer: signer}, nil
}

func (c *Client) ExchangeCode(ctx context.Context, code string, redirectURI string) (core.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", grantAuthorizationCode)
	form.Set("redirect_uri", strings.TrimSpace(redirectURI))
	form.Set("code", strings.TrimSpace(code))
	return c.fetchToken(ctx, form, core.ServiceErrorAuthExchangeFailed)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (core.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", grantRefreshToken)
	form.Set("refresh_token", strings.TrimSpace(refreshToken))
	return c.fetchToken(ctx, form, core.ServiceErrorAuthRefreshFailed)
}

func (c *Client) ListAccounts(ctx context.Context, accessToken string, includeClosed bool) ([]core.Account, error) {
	res, err := c.signed(ctx, http.MethodGet, pathAccounts, accessToken, nil, nil)
	if err != nil {
		return nil, err
	}
	if !transport.IsSuccess(res.StatusCode) {
		return nil, bankFailure(res, core.ServiceErrorExternalFailure, "monzo: list accounts")
	}
	var payload struct {
		Accounts []core.Account `json:"accounts"`
	}
	if err := transport.DecodeJSON(res, &payload); err != nil {
		return nil, err
	}
	accounts := make([]core.Account, 0, len(payload.Accounts))
	for _, account := range payload.Accounts {
		if account.Closed && !includeClosed {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (c *Client) ListContainers(ctx context.Context, accessToken string) ([]core.Container, error) {
	res, err := c.signed(ctx, http.MethodGet, pathPots, accessToken, nil, nil)
	if err != nil {
		return nil, err
	}
	if !transport.IsSuccess(res.StatusCode) {
		return nil, bankFailure(res, core.ServiceErrorExternalFailure, "monzo: list pots")
	}
	var payload struct {
		Pots []core.Container `json:"pots"`
	}
	if err := transport.DecodeJSON(res, &payload); err != nil {
		return nil, err
	}
	pots := make([]core.Container, 0, len(payload.Pots))
	for _, pot := range payload.Pots {
		if pot.Deleted {
			continue
		}
		pots = append(pots, pot)
	}
	return pots, nil
}

func (c *Client) RegisterWebhook(ctx context.Context, accessToken string, accountID string, callbackURL string) (string, error) {
	form := url.Values{}
	form.Set("account_id", strings.TrimSpace(accountID))
	form.Set("url", strings.TrimSpace(callbackURL))
	res, err := c.signed(ctx, http.MethodPost, pathWebhooks, accessToken, nil, []byte(form.Encode()))
	if err != nil {
		return "", err
	}
	if !transport.IsSuccess(res.StatusCode) {
		return "", bankFailure(res, core.ServiceErrorWebhookRegistrationFailed, "monzo: register webhook")
	}
	var payload struct {
		Webhook struct {
			ID        string `json:"id"`
			AccountID string `json:"account_id"`
			URL       string `json:"url"`
		} `json:"webhook"`
	}
	if err := transport.DecodeJSON(res, &payload); err != nil {
		return "", err
	}
	id := strings.TrimSpace(payload.Webhook.ID)
	if id == "" {
		return "", core.NewBankError(nil, core.ServiceErrorWebhookRegistrationFailed,
			"monzo: webhook response missing id", res.StatusCode)
	}
	return id, nil
}

// DepositToContainer moves money into a pot. The dedupe key is sent
// unchanged so the bank collapses repeated deliveries into one transfer.
func (c *Client) DepositToContainer(ctx context.Context, req core.DepositRequest) (core.Container, error) {
	if strings.TrimSpace(req.ContainerID) == "" || strings.TrimSpace(req.AccountID) == "" {
		return core.Container{}, core.NewMissingLinkError("")
	}
	if strings.TrimSpace(req.DedupeKey) == "" {
		return core.Container{}, goerrors.New("monzo: dedupe key is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ServiceErrorBadInput)
	}
	form := url.Values{}
	form.Set("source_account_id", strings.TrimSpace(req.AccountID))
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("dedupe_id", req.DedupeKey)
	path := pathPots + "/" + url.PathEscape(strings.TrimSpace(req.ContainerID)) + "/deposit"
	res, err := c.signed(ctx, http.MethodPut, path, req.AccessToken, nil, []byte(form.Encode()))
	if err != nil {
		return core.Container{}, err
	}
	if !transport.IsSuccess(res.StatusCode) {
		return core.Container{}, bankFailure(res, core.ServiceErrorDepositFailed, "monzo: deposit into pot")
	}
	var pot core.Container
	if err := transport.DecodeJSON(res, &pot); err != nil {
		return core.Container{}, err
	}
	return pot, nil
}

func (c *Client) signed(
	ctx context.Context,
	method string,
	path string,
	accessToken string,
	query map[string]string,
	body []byte,
) (core.TransportResponse, error) {
	req := core.TransportRequest{
		Method:  method,
		URL:     c.baseURL + path,
		Query:   query,
		Body:    body,
		Timeout: c.cfg.RequestTimeout,
	}
	if err := c.signer.Sign(ctx, &req, accessToken); err != nil {
		return core.TransportResponse{}, goerrors.Wrap(err, goerrors.CategoryAuth, "monzo: sign request").
			WithCode(http.StatusUnauthorized).
			WithTextCode(core.ServiceErrorUnauthorized)
	}
	return c.adapter.Do(ctx, req)
}

func (c *Client) fetchToken(ctx context.Context, form url.Values, failureCode string) (core.TokenSet, error) {
	form.Set("client_id", c.cfg.ClientID)
	headers := map[string]string{"Accept": transport.ContentTypeJSON}
	if c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	} else if c.cfg.ClientSecret != "" {
		headers["Authorization"] = "Basic " + basicCredentials(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	res, err := c.adapter.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     c.baseURL + pathToken,
		Headers: headers,
		Body:    []byte(form.Encode()),
		Timeout: c.cfg.RequestTimeout,
	})
	if err != nil {
		return core.TokenSet{}, err
	}

	payload, parseErr := parseTokenPayload(res.Body, res.Headers["Content-Type"])
	if !transport.IsSuccess(res.StatusCode) {
		return core.TokenSet{}, core.NewBankError(nil, failureCode,
			fmt.Sprintf("monzo: token endpoint error (%d): %s", res.StatusCode, describeTokenError(payload)),
			res.StatusCode)
	}
	if parseErr != nil {
		return core.TokenSet{}, core.NewBankError(parseErr, failureCode, "monzo: decode token response", res.StatusCode)
	}
	if payload.ErrorCode != "" {
		return core.TokenSet{}, core.NewBankError(nil, failureCode,
			"monzo: token endpoint error: "+describeTokenError(payload), res.StatusCode)
	}
	if payload.AccessToken == "" {
		return core.TokenSet{}, core.NewBankError(nil, failureCode,
			"monzo: token response missing access token", res.StatusCode)
	}
	return core.TokenSet{
		UserID:       payload.UserID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		ClientID:     payload.ClientID,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

func bankFailure(res core.TransportResponse, textCode string, operation string) error {
	detail := describeAPIError(res.Body)
	return core.NewBankError(nil, textCode,
		fmt.Sprintf("%s failed (%d): %s", operation, res.StatusCode, detail), res.StatusCode)
}

func describeAPIError(body []byte) string {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Code != "" {
			return payload.Code
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "unknown error"
	}
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

func basicCredentials(clientID string, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

var _ core.BankClient = (*Client)(nil)
