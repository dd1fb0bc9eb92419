package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nopg/internal/ir"
	"github.com/roach88/nopg/internal/session"
)

// withSession opens the configured store and runs fn in one session. The
// session is committed when fn and every chained operation succeed, and
// rolled back otherwise. Operation failures are written to the output and
// returned as ExitFailure.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session.Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.output(cmd)

	db, err := session.Open(ctx, opts.Config.Store, session.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer db.Close()

	s, err := db.Begin(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to begin session", err)
	}

	err = fn(ctx, s)
	if err == nil {
		err = s.Err()
	}
	if err != nil {
		s.Rollback()
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		out.Failure(err)
		return &ExitError{Code: ExitFailure, Message: "operation failed", Err: err, Reported: true}
	}

	if err := s.Commit(); err != nil {
		out.Failure(err)
		return &ExitError{Code: ExitFailure, Message: "commit failed", Err: err, Reported: true}
	}
	return nil
}

// readArg returns s, or the contents of the named file when s is "@path".
func readArg(s string) ([]byte, error) {
	if path, ok := strings.CutPrefix(s, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read "+path, err)
		}
		return data, nil
	}
	return []byte(s), nil
}

// objectArg decodes a JSON object flag value. Empty means an empty object.
func objectArg(flag, s string) (map[string]any, error) {
	data, err := readArg(s)
	if err != nil {
		return nil, err
	}
	obj, err := ir.DecodeObject(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --"+flag, err)
	}
	return obj, nil
}

// predicateArg decodes a JSON predicate: an object, an AND/OR array, or
// nothing.
func predicateArg(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	data, err := readArg(s)
	if err != nil {
		return nil, err
	}
	v, err := ir.Decode(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --where", err)
	}
	return v, nil
}
