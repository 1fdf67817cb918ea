package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantage-compute/vantage-cli/pkg/output"
	"github.com/vantage-compute/vantage-cli/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			info := version.GetBuildInfo()
			out := rt.Writer()
			if rt.OutputFormat() != output.FormatTable {
				return output.WriteObject(out, rt.OutputFormat(), info)
			}
			fmt.Fprintf(out, "vantage %s\n", info.Version)
			fmt.Fprintf(out, "  commit:   %s\n", info.GitCommit)
			fmt.Fprintf(out, "  built:    %s\n", info.BuildDate)
			fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
			fmt.Fprintf(out, "  platform: %s\n", info.Platform)
			return nil
		},
	}
}
