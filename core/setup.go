package core

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"
)

func (s *Service) beginLogin(ctx context.Context) (LoginRedirect, error) {
	authURL, err := url.Parse(strings.TrimSpace(s.config.Bank.AuthURL))
	if err != nil || authURL.Scheme == "" {
		return LoginRedirect{}, fmt.Errorf("core: bank auth url is invalid")
	}
	redirectURI := strings.TrimSpace(s.config.Bank.RedirectURL)
	if redirectURI == "" {
		return LoginRedirect{}, fmt.Errorf("core: bank redirect url is required")
	}

	state := generateOAuthState()
	if err := s.oauthStateStore.Save(ctx, OAuthStateRecord{State: state, RedirectURI: redirectURI}); err != nil {
		return LoginRedirect{}, err
	}

	query := authURL.Query()
	query.Set("client_id", s.config.Bank.ClientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("response_type", "code")
	query.Set("state", state)
	authURL.RawQuery = query.Encode()
	return LoginRedirect{URL: authURL.String(), State: state}, nil
}

func (s *Service) completeLogin(ctx context.Context, code string, state string) (SetupPage, error) {
	redirectURI := strings.TrimSpace(s.config.Bank.RedirectURL)
	state = strings.TrimSpace(state)
	switch {
	case state != "":
		record, err := s.oauthStateStore.Consume(ctx, state)
		if err != nil {
			return SetupPage{}, goerrors.Wrap(err, goerrors.CategoryAuth, "core: oauth state rejected").
				WithCode(http.StatusUnauthorized).
				WithTextCode(ServiceErrorOAuthStateInvalid)
		}
		if strings.TrimSpace(record.RedirectURI) != "" {
			redirectURI = record.RedirectURI
		}
	case s.config.OAuth.RequireState:
		return SetupPage{}, newServiceError("core: oauth state is required", goerrors.CategoryAuth, ServiceErrorOAuthStateInvalid)
	}

	user, err := s.credentials.ExchangeAuthCode(ctx, code, redirectURI)
	if err != nil {
		return SetupPage{}, err
	}
	accounts, containers, err := s.fetchSetupChoices(ctx, user.AccessToken)
	if err != nil {
		return SetupPage{}, err
	}
	return SetupPage{
		UserID:      user.UserID,
		AccessToken: user.AccessToken,
		Accounts:    accounts,
		Containers:  containers,
	}, nil
}

// fetchSetupChoices lists accounts and pots concurrently.
func (s *Service) fetchSetupChoices(ctx context.Context, accessToken string) ([]Account, []Container, error) {
	var (
		accounts   []Account
		containers []Container
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		items, err := s.bank.ListAccounts(groupCtx, accessToken, false)
		if err != nil {
			return err
		}
		accounts = items
		return nil
	})
	group.Go(func() error {
		items, err := s.bank.ListContainers(groupCtx, accessToken)
		if err != nil {
			return err
		}
		containers = items
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return accounts, containers, nil
}

func (s *Service) confirmSetup(ctx context.Context, req SetupRequest) (SetupResult, error) {
	req = normalizeSetupRequest(req)
	if err := req.Validate(); err != nil {
		return SetupResult{}, err
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return SetupResult{}, err
	}
	if strings.TrimSpace(user.AccessToken) == "" {
		return SetupResult{}, newServiceError("core: no access token on file for user", goerrors.CategoryAuth, ServiceErrorUnauthorized).
			WithMetadata(map[string]any{"user_id": req.UserID})
	}
	if subtle.ConstantTimeCompare([]byte(user.AccessToken), []byte(req.AccessToken)) != 1 {
		return SetupResult{}, newServiceError("core: access token does not match", goerrors.CategoryAuthz, ServiceErrorForbidden).
			WithMetadata(map[string]any{"user_id": req.UserID})
	}

	user, err = s.store.UpdateUser(ctx, req.UserID, func(current *UserConfig) error {
		current.AccountID = req.AccountID
		current.ContainerID = req.ContainerID
		return nil
	})
	if err != nil {
		return SetupResult{}, err
	}

	webhookID, created, err := s.registrar.Ensure(ctx, user)
	if err != nil {
		return SetupResult{}, err
	}
	if created {
		user.WebhookID = webhookID
	} else {
		webhookID = user.WebhookID
	}
	return SetupResult{User: user, WebhookID: webhookID, WebhookCreated: created}, nil
}

func normalizeSetupRequest(req SetupRequest) SetupRequest {
	req.UserID = strings.TrimSpace(req.UserID)
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.ContainerID = strings.TrimSpace(req.ContainerID)
	return req
}

func (r SetupRequest) Validate() error {
	fields := []goerrors.FieldError{}
	for _, field := range []struct {
		name  string
		value string
	}{
		{name: "accessToken", value: r.AccessToken},
		{name: "userId", value: r.UserID},
		{name: "accountId", value: r.AccountID},
		{name: "potId", value: r.ContainerID},
	} {
		if strings.TrimSpace(field.value) == "" {
			fields = append(fields, goerrors.FieldError{Field: field.name, Message: "is required"})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return goerrors.NewValidation("core: setup request is incomplete", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}
