package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/httpacl/httpacl/internal/cli"
)

var version = "dev"

func main() {
	ctx := context.Background()
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}
	if err := cli.NewRoot(v).ExecuteContext(ctx); err != nil {
		var ee *cli.ExitError
		if errors.As(err, &ee) {
			os.Exit(ee.Code())
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
