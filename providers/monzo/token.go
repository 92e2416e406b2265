package monzo

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type tokenPayload struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	UserID           string
	ClientID         string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func describeTokenError(payload tokenPayload) string {
	if payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	if payload.ErrorCode != "" {
		return payload.ErrorCode
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil || strings.Contains(contentType, "json") {
		return payload, err
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenPayload{}, err
	}
	return tokenPayload{
		AccessToken:      readString(decoded["access_token"]),
		RefreshToken:     readString(decoded["refresh_token"]),
		TokenType:        readString(decoded["token_type"]),
		UserID:           readString(decoded["user_id"]),
		ClientID:         readString(decoded["client_id"]),
		ExpiresIn:        readInt64(decoded["expires_in"]),
		ErrorCode:        readString(decoded["error"]),
		ErrorDescription: readString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		UserID:           strings.TrimSpace(values.Get("user_id")),
		ClientID:         strings.TrimSpace(values.Get("client_id")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readInt64(value any) int64 {
	switch typed := value.(type) {
	case float64:
		return int64(typed)
	case int64:
		return typed
	case int:
		return int64(typed)
	case string:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed
	default:
		return 0
	}
}
