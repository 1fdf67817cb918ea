package gql

import "strings"

// AuthenticationError indicates the credential itself was missing, expired,
// or rejected, and a refresh could not recover it. It always means the user
// has to log in again.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// GraphQLError covers server-reported application errors as well as
// non-authentication transport failures (timeouts, connection failures,
// 5xx responses). It never triggers a token refresh.
type GraphQLError struct {
	Message string
	Errors  []string
}

func (e *GraphQLError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Errors, "; ")
}
