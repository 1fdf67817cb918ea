// Package gql implements the GraphQL client for the vantage CLI, attaching
// bearer credentials from a persona and transparently recovering from
// authentication failures with a single token refresh and retry.
package gql
