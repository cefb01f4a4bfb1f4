package cmd

import (
	"fmt"
	"os"

	"recon-matching-engine/pkg/errors"
)

// Exit prints the error and terminates with the exit code of its category:
// validation 2, configuration 3, lookup 4, claim/internal 5, unknown 1.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}

	code := 1
	if re, ok := errors.As(err); ok {
		code = re.GetExitCode()
		fmt.Fprintf(os.Stderr, "Error (%s/%s): %s\n", re.Category, re.Code, re.Error())
		for key, value := range re.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
