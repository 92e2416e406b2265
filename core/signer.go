package core

import (
	"context"
	"fmt"
	"strings"
)

type BearerTokenSigner struct{}

func (BearerTokenSigner) Sign(_ context.Context, req *TransportRequest, accessToken string) error {
	if req == nil {
		return fmt.Errorf("core: request is required")
	}
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return fmt.Errorf("core: access token is required")
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = "Bearer " + token
	return nil
}

var _ Signer = BearerTokenSigner{}
