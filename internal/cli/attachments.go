package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/session"
	"github.com/roach88/nopg/internal/validate"
)

// NewAttachCommand creates the attach command group.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Store and list binary attachments of a document",
	}

	var meta string
	add := &cobra.Command{
		Use:   "add <document-id> <file>",
		Short: "Attach a file to a document",
		Long: `Attach a file to a document. The file name is recorded as "filename"
unless --meta sets it.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := objectArg("meta", meta)
			if err != nil {
				return err
			}
			if _, ok := fields["filename"]; !ok {
				fields["filename"] = filepath.Base(args[1])
			}
			f, err := os.Open(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open attachment", err)
			}
			defer f.Close()

			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				// The attachment goes to the document just queued.
				s.GetDocument(ctx, byID(args[0])).CreateAttachment(ctx, nil, f, fields)
				if err := s.Err(); err != nil {
					return err
				}
				s.Fetch()
				att, _ := session.FetchAs[*model.Entity](s)
				return rootOpts.output(cmd).Success(att)
			})
		},
	}
	add.Flags().StringVar(&meta, "meta", "", "extra fields as a JSON object")

	list := &cobra.Command{
		Use:           "list <document-id>",
		Short:         "List a document's attachments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				s.GetDocument(ctx, byID(args[0])).SearchAttachments(ctx, nil, nil)
				if err := s.Err(); err != nil {
					return err
				}
				s.Fetch()
				atts, _ := session.FetchAs[[]*model.Entity](s)
				return rootOpts.output(cmd).Success(atts)
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

// NewLibCommand creates the lib command group.
func NewLibCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lib",
		Short: "Manage validator libraries",
	}

	var name, contentType string
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Import or replace a library",
		Long: `Import or replace a library. CUE libraries (the default content type)
are prepended to every CUE validator. The name defaults to the file name
without its extension.

Examples:
  nopg lib import shapes.cue
  nopg lib import defs.cue --name acme/defs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read library", err)
			}
			src := session.LibrarySource{
				Name:        name,
				Content:     string(content),
				ContentType: contentType,
				Meta:        map[string]any{"source": filepath.Base(args[0])},
			}
			if src.Name == "" {
				src.Name = libraryName(args[0])
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				lib, ok := session.FetchAs[*model.Entity](s.ImportLibrary(ctx, src))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(lib)
			})
		},
	}
	imp.Flags().StringVar(&name, "name", "", "library name (default: file name without extension)")
	imp.Flags().StringVar(&contentType, "content-type", validate.ContentTypeCUE, "library content type")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List libraries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				libs, ok := session.FetchAs[[]*model.Entity](s.SearchLibraries(ctx, nil))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(libs)
			})
		},
	}

	cmd.AddCommand(imp, list)
	return cmd
}

// libraryName derives a library name from a file path.
func libraryName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
