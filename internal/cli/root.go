// Package cli implements the aclcheck command tree: evaluate a URL against a
// policy file, or resolve a hostname through the policy-filtering resolver.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/httpacl/httpacl/pkg/acl"
)

// NewRoot builds the aclcheck root command.
func NewRoot(version string) *cobra.Command {
	var policyPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:           "aclcheck",
		Short:         "aclcheck: evaluate outbound requests against an HTTP ACL policy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate("aclcheck {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&policyPath, "policy", "", "policy configuration file (YAML); omit for the default policy")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newEvalCmd(&policyPath))
	cmd.AddCommand(newResolveCmd(&policyPath))

	return cmd
}

func loadPolicy(path string) (*acl.Policy, error) {
	if path == "" {
		return acl.Default(), nil
	}
	b, err := acl.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return b.TryBuild()
}
