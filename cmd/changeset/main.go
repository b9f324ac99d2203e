// Command changeset applies YAML changeset files to a SQL database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/changeset/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err == nil {
		return
	}

	// Commands print their own report; only unreported errors need output here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code == cli.ExitCommandError {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
