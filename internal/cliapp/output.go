package cliapp

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/argus-dev/argus/internal/apierr"
)

// exitUserInput and exitOperational are the CLI's non-zero exit codes
// (spec.md §6 "Exit codes: 0 success; 1 operational failure; 2
// user-input error").
const (
	exitOK          = 0
	exitOperational = 1
	exitUserInput   = 2
)

// exitCodeFor classifies err by its apierr.Code: malformed/ambiguous/
// unresolvable input is a user error, everything else (connectivity,
// CDP/operator failures) is operational.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch apierr.CodeOf(err) {
	case apierr.CodeInvalidBody, apierr.CodeInvalidMatch, apierr.CodeInvalidMatchCase,
		apierr.CodeUnknownKey, apierr.CodeNotFound, apierr.CodeMultipleMatches:
		return exitUserInput
	default:
		return exitOperational
	}
}

// printResult renders v as pretty JSON when asJSON is set, or hands off
// to human for a terser rendering otherwise.
func printResult(v any, asJSON bool, human func(v any)) {
	if asJSON || human == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	human(v)
}

// usageError builds a user-input error (exit code 2) for CLI-level
// argument validation failures that never reach a watcher.
func usageError(message string) error {
	return apierr.New(apierr.CodeInvalidBody, message)
}

func printErr(err error) {
	code := apierr.CodeOf(err)
	if code != "" {
		fmt.Fprintf(os.Stderr, "argus: %s (%s)\n", err, code)
		return
	}
	fmt.Fprintf(os.Stderr, "argus: %s\n", err)
}
