// Package auth implements the OAuth 2.0 device authorization grant and the
// token lifecycle for the vantage CLI: claim decoding, expiry checks, refresh
// exchanges, and persona construction from cached tokens.
package auth
