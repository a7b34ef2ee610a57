package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"anvil/internal/version"
)

var (
	versionFormat    string
	versionShowBuild bool
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionShowBuild, "build", false, "include commit and build date")
}

type versionPayload struct {
	Tool    string `json:"tool"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the anvil version",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(versionFormat) {
		case "pretty":
			fmt.Fprintf(cmd.OutOrStdout(), "anvil %s\n", version.Colored())
			if versionShowBuild {
				fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", orUnknown(version.Commit))
				fmt.Fprintf(cmd.OutOrStdout(), "built:  %s\n", orUnknown(version.Date))
			}
			return nil
		case "json":
			payload := versionPayload{Tool: "anvil", Version: version.String()}
			if versionShowBuild {
				payload.Commit = orUnknown(version.Commit)
				payload.Date = orUnknown(version.Date)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
