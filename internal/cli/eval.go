package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/httpacl/httpacl/pkg/enforce"
)

func newEvalCmd(policyPath *string) *cobra.Command {
	var method string
	var headers []string

	cmd := &cobra.Command{
		Use:   "eval URL",
		Short: "Evaluate a request against the policy and report the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy(*policyPath)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(cmd.Context(), strings.ToUpper(method), args[0], nil)
			if err != nil {
				return err
			}
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("bad header %q, want name:value", h)
				}
				req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}

			checker := enforce.NewChecker(policy)
			if err := checker.CheckRequest(cmd.Context(), req); err != nil {
				var de *enforce.DeniedError
				if errors.As(err, &de) {
					fmt.Fprintf(cmd.OutOrStdout(), "DENY %s\n", de.Error())
					// Distinguish a policy denial from an operational failure.
					return &ExitError{code: 2}
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ALLOW")
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "request method")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header (name:value), repeatable")

	return cmd
}

// ExitError carries a process exit code without an extra message; the
// verdict has already been printed.
type ExitError struct {
	code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Code returns the process exit code.
func (e *ExitError) Code() int { return e.code }
