package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/webhooks"
)

type stubRoundUpService struct {
	outcome    core.Outcome
	handleErr  error
	handled    int
	redirect   core.LoginRedirect
	page       core.SetupPage
	loginErr   error
	gotCode    string
	gotState   string
	setup      core.SetupResult
	setupErr   error
	setupCalls []core.SetupRequest
}

func (s *stubRoundUpService) HandleTransaction(context.Context, []byte) (core.Outcome, error) {
	s.handled++
	return s.outcome, s.handleErr
}

func (s *stubRoundUpService) BeginLogin(context.Context) (core.LoginRedirect, error) {
	return s.redirect, s.loginErr
}

func (s *stubRoundUpService) CompleteLogin(_ context.Context, code string, state string) (core.SetupPage, error) {
	s.gotCode = code
	s.gotState = state
	return s.page, s.loginErr
}

func (s *stubRoundUpService) ConfirmSetup(_ context.Context, req core.SetupRequest) (core.SetupResult, error) {
	s.setupCalls = append(s.setupCalls, req)
	return s.setup, s.setupErr
}

func newTestRouter(t *testing.T, service *stubRoundUpService, ledger webhooks.DeliveryLedger) *httptest.Server {
	t.Helper()
	dispatcher := NewDispatcher(nil)
	for _, handler := range []core.InboundHandler{
		NewWebhookHandler(service, ledger),
		NewLoginHandler(service, nil),
		NewSetupHandler(service),
	} {
		if err := dispatcher.Register(handler); err != nil {
			t.Fatalf("register %s: %v", handler.Surface(), err)
		}
	}
	server := httptest.NewServer(NewRouter(dispatcher))
	t.Cleanup(server.Close)
	return server
}

func noRedirectClient(server *httptest.Server) *http.Client {
	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

const transactionBody = `{"type":"transaction.created","data":{"id":"tx_1","amount":-1270,"scheme":"mastercard","account_id":"acc_1"}}`

func TestWebhookEndpoint_TransferReturns200(t *testing.T) {
	service := &stubRoundUpService{outcome: core.Outcome{Transferred: true, TransactionID: "tx_1", Amount: 30}}
	server := newTestRouter(t, service, nil)

	res, err := http.Post(server.URL+"/webhook", "application/json", strings.NewReader(transactionBody))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
}

func TestWebhookEndpoint_NoopReturns204(t *testing.T) {
	service := &stubRoundUpService{outcome: core.Outcome{Reason: core.AbortRoundAmount, TransactionID: "tx_1"}}
	server := newTestRouter(t, service, nil)

	res, err := http.Post(server.URL+"/webhook", "application/json", strings.NewReader(transactionBody))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
}

func TestWebhookEndpoint_FailureReturns500(t *testing.T) {
	service := &stubRoundUpService{
		handleErr: core.NewBankError(nil, core.ServiceErrorDepositFailed, "deposit failed", http.StatusBadRequest),
	}
	server := newTestRouter(t, service, nil)

	res, err := http.Post(server.URL+"/webhook", "application/json", strings.NewReader(transactionBody))
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.StatusCode)
	}
}

func TestWebhookEndpoint_LedgerSuppressesDuplicates(t *testing.T) {
	service := &stubRoundUpService{outcome: core.Outcome{Transferred: true, TransactionID: "tx_1", Amount: 30}}
	server := newTestRouter(t, service, webhooks.NewMemoryDeliveryLedger())

	statuses := []int{}
	for attempt := 0; attempt < 2; attempt++ {
		res, err := http.Post(server.URL+"/webhook", "application/json", strings.NewReader(transactionBody))
		if err != nil {
			t.Fatalf("post webhook: %v", err)
		}
		statuses = append(statuses, res.StatusCode)
		res.Body.Close()
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusNoContent {
		t.Fatalf("expected 200 then 204, got %v", statuses)
	}
	if service.handled != 1 {
		t.Fatalf("expected engine to run once, got %d", service.handled)
	}
}

func TestLoginEndpoint_RedirectsWithoutCode(t *testing.T) {
	service := &stubRoundUpService{
		redirect: core.LoginRedirect{URL: "https://auth.monzo.com/?client_id=client_1&state=abc", State: "abc"},
	}
	server := newTestRouter(t, service, nil)

	res, err := noRedirectClient(server).Get(server.URL + "/login")
	if err != nil {
		t.Fatalf("get login: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.StatusCode)
	}
	if res.Header.Get("Location") != service.redirect.URL {
		t.Fatalf("unexpected location %q", res.Header.Get("Location"))
	}
}

func TestLoginEndpoint_RendersSetupPage(t *testing.T) {
	service := &stubRoundUpService{
		page: core.SetupPage{
			UserID:      "user_1",
			AccessToken: "access_1",
			Accounts:    []core.Account{{ID: "acc_1", Description: "Current account"}},
			Containers:  []core.Container{{ID: "pot_1", Name: "Spare change"}, {ID: "pot_2", Name: "Holiday"}},
		},
	}
	server := newTestRouter(t, service, nil)

	res, err := http.Get(server.URL + "/login?code=code_1&state=state_1")
	if err != nil {
		t.Fatalf("get login callback: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if !strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("expected html content type, got %q", res.Header.Get("Content-Type"))
	}
	if service.gotCode != "code_1" || service.gotState != "state_1" {
		t.Fatalf("expected code and state forwarded, got %q %q", service.gotCode, service.gotState)
	}
	raw, _ := io.ReadAll(res.Body)
	body := string(raw)
	for _, fragment := range []string{
		`name="accountId" value="acc_1"`,
		`<option value="pot_2">Holiday</option>`,
		`name="accessToken" value="access_1"`,
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("expected page to contain %q, got:\n%s", fragment, body)
		}
	}
}

func TestLoginEndpoint_DeniedAuthorizationIsBadRequest(t *testing.T) {
	service := &stubRoundUpService{}
	server := newTestRouter(t, service, nil)

	res, err := http.Get(server.URL + "/login?error=access_denied")
	if err != nil {
		t.Fatalf("get login: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}

func TestSetupEndpoint_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{
			name:   "empty body",
			body:   "",
			status: http.StatusBadRequest,
		},
		{
			name: "missing access token on file",
			body: setupForm("access_1"),
			err: goerrors.New("no token", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode(core.ServiceErrorUnauthorized),
			status: http.StatusUnauthorized,
		},
		{
			name: "token mismatch",
			body: setupForm("access_wrong"),
			err: goerrors.New("mismatch", goerrors.CategoryAuthz).
				WithCode(http.StatusForbidden).
				WithTextCode(core.ServiceErrorForbidden),
			status: http.StatusForbidden,
		},
		{
			name:   "bank failure",
			body:   setupForm("access_1"),
			err:    errors.New("bank unavailable"),
			status: http.StatusInternalServerError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubRoundUpService{setupErr: tc.err}
			server := newTestRouter(t, service, nil)
			res, err := http.Post(server.URL+"/setup", "application/x-www-form-urlencoded", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post setup: %v", err)
			}
			defer res.Body.Close()
			if res.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.StatusCode)
			}
		})
	}
}

func TestSetupEndpoint_Success(t *testing.T) {
	service := &stubRoundUpService{
		setup: core.SetupResult{User: core.UserConfig{UserID: "user_1"}, WebhookID: "webhook_1", WebhookCreated: true},
	}
	server := newTestRouter(t, service, nil)

	res, err := http.Post(server.URL+"/setup", "application/x-www-form-urlencoded", strings.NewReader(setupForm("access_1")))
	if err != nil {
		t.Fatalf("post setup: %v", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || string(raw) != "webhook created" {
		t.Fatalf("expected 200 webhook created, got %d %q", res.StatusCode, string(raw))
	}
	if len(service.setupCalls) != 1 {
		t.Fatalf("expected one setup call, got %d", len(service.setupCalls))
	}
	got := service.setupCalls[0]
	if got.UserID != "user_1" || got.AccountID != "acc_1" || got.ContainerID != "pot_1" || got.AccessToken != "access_1" {
		t.Fatalf("unexpected parsed setup request: %+v", got)
	}
}

func TestSetupPageRenderer_SelectsAmongAccounts(t *testing.T) {
	body, err := NewSetupPageRenderer().Render(core.SetupPage{
		UserID:      "user_1",
		AccessToken: "access_1",
		Accounts: []core.Account{
			{ID: "acc_1", Description: "Current"},
			{ID: "acc_2", Description: "<b>Joint</b>"},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	page := string(body)
	if !strings.Contains(page, `<select name="accountId" required>`) {
		t.Fatalf("expected account select for multiple accounts")
	}
	if strings.Contains(page, "<b>Joint</b>") {
		t.Fatalf("expected account description to be escaped")
	}
}

func setupForm(accessToken string) string {
	values := url.Values{}
	values.Set("accessToken", accessToken)
	values.Set("userId", "user_1")
	values.Set("accountId", "acc_1")
	values.Set("potId", "pot_1")
	return values.Encode()
}
