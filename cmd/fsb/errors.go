package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hlop3z/formsandbox/internal/cli"
	"github.com/hlop3z/formsandbox/internal/fserr"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// errRejected reports a rejected submission after its field errors were
// printed, so main only sets the exit code.
var errRejected = errors.New("submission rejected")

// handleClientError checks for common error types and prints helpful messages.
// Returns true if the error was handled (and a message was printed), false otherwise.
func handleClientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, errRejected) || errors.Is(err, errLockMismatch) {
		return true
	}

	if errors.Is(err, formsandbox.ErrNoDatabase) {
		printHelp("missing_db_url")
		return true
	}

	var formErr *formsandbox.FormError
	if errors.As(err, &formErr) {
		fmt.Fprintln(os.Stderr, cli.Error("error")+": form "+cli.Code(formErr.Name)+" not found")
		if formErr.Suggestion != "" {
			fmt.Fprintln(os.Stderr, cli.Help("help")+": did you mean "+cli.Code(formErr.Suggestion)+"?")
		}
		fmt.Fprintln(os.Stderr)
		printHelp("form_not_found")
		return true
	}

	var fe *fserr.Error
	if errors.As(err, &fe) && fe.GetCode() == fserr.ErrConfigInvalid {
		if dir, ok := fe.GetContext()["file"].(string); ok && isMissingDir(fe) {
			printHelp("forms_dir_not_found", dir)
			return true
		}
	}

	if errors.Is(err, formsandbox.ErrProcessingFailed) {
		fmt.Fprintln(os.Stderr, cli.Error("error")+": the submission could not be processed")
		fmt.Fprintln(os.Stderr, cli.Note("note")+": the cause is in the log output above")
		return true
	}

	return false
}

func isMissingDir(fe *fserr.Error) bool {
	return errors.Is(fe.GetCause(), os.ErrNotExist)
}
