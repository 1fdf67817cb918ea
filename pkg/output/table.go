package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/vantage-compute/vantage-cli/pkg/gql"
)

// IdentityInfo is the presentation shape of "who is logged in" for one
// profile, including selected token claims when they are available.
type IdentityInfo struct {
	Profile        string `json:"profile" yaml:"profile"`
	Email          string `json:"email,omitempty" yaml:"email,omitempty"`
	ClientID       string `json:"client_id" yaml:"client_id"`
	LoggedIn       bool   `json:"logged_in" yaml:"logged_in"`
	UserID         string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	TokenIssuedAt  string `json:"token_issued_at,omitempty" yaml:"token_issued_at,omitempty"`
	TokenExpiresAt string `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	TokenExpired   bool   `json:"token_expired" yaml:"token_expired"`
}

func WriteIdentityTable(w io.Writer, info IdentityInfo) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	writeRow := func(key, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", key, value)
		}
	}
	writeRow("PROFILE", info.Profile)
	writeRow("EMAIL", info.Email)
	writeRow("CLIENT_ID", info.ClientID)
	writeRow("LOGGED_IN", fmt.Sprintf("%t", info.LoggedIn))
	writeRow("USER_ID", info.UserID)
	writeRow("NAME", info.Name)
	writeRow("TOKEN_ISSUED_AT", info.TokenIssuedAt)
	writeRow("TOKEN_EXPIRES_AT", info.TokenExpiresAt)
	if info.TokenExpiresAt != "" {
		writeRow("TOKEN_EXPIRED", fmt.Sprintf("%t", info.TokenExpired))
	}
	_ = tw.Flush()
}

func WriteMetricsTable(w io.Writer, metrics []gql.QueryMetrics) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "QUERY\tDURATION_MS\tSUCCESS\tERROR\tRETRIES")
	for _, m := range metrics {
		errType := m.ErrorType
		if errType == "" {
			errType = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%t\t%s\t%d\n", m.QueryName, m.ExecutionTimeMS, m.Success, errType, m.RetryCount)
	}
	_ = tw.Flush()
}
