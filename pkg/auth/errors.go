package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginTimeout indicates the device flow poll budget was exhausted
	// before the user completed authorization.
	ErrLoginTimeout = errors.New("login process was not completed in time; please try 'vantage login' again")

	// ErrRefreshImpossible indicates an expired access token with no refresh
	// token to exchange.
	ErrRefreshImpossible = errors.New("the access token is expired and no refresh token is available; please log in again")

	// ErrRefreshFailed indicates the refresh-token exchange itself failed.
	ErrRefreshFailed = errors.New("the auth token could not be refreshed; please try logging in again")
)

// DeviceDeniedError is a terminal error response from the token endpoint
// during device-code polling, e.g. invalid_grant or expired_token. It is
// never retried.
type DeviceDeniedError struct {
	Code        string
	Description string
}

func (e *DeviceDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("device authorization denied (%s): %s", e.Code, e.Description)
	}
	return fmt.Sprintf("device authorization denied: %s", e.Code)
}
