package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/httpacl/httpacl/pkg/enforce"
)

func newResolveCmd(policyPath *string) *cobra.Command {
	var upstream string
	var port uint16

	cmd := &cobra.Command{
		Use:   "resolve HOST",
		Short: "Resolve a hostname through the policy-filtering resolver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy(*policyPath)
			if err != nil {
				return err
			}
			var opts []enforce.ResolverOption
			if upstream != "" {
				opts = append(opts, enforce.WithDelegate(enforce.NewDNSResolver(upstream)))
			}
			resolver := enforce.NewResolver(policy, opts...)

			if port != 0 {
				addrs, err := resolver.LookupAddrPorts(cmd.Context(), args[0], port)
				if err != nil {
					return err
				}
				for _, ap := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), ap.String())
				}
				return nil
			}
			addrs, err := resolver.LookupAddrs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&upstream, "upstream", "", "upstream DNS server (host:port); omit for the system resolver")
	cmd.Flags().Uint16Var(&port, "port", 0, "destination port to filter candidates by")

	return cmd
}
