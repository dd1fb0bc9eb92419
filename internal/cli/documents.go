package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
	"github.com/roach88/nopg/internal/session"
)

// DocOptions holds flags for the doc subcommands.
type DocOptions struct {
	*RootOptions
	Type   string
	Data   string
	Where  string
	Order  string
	Fields []string
	Any    bool
}

// NewDocCommand creates the doc command group.
func NewDocCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create, query and change documents",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a document",
		Long: `Create a document, validated against its type when --type is given.

Examples:
  nopg doc create --data '{"title":"draft"}'
  nopg doc create --type Person --data @ada.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := objectArg("data", opts.Data)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				doc, ok := session.FetchAs[*model.Entity](s.Create(ctx, typeArg(opts.Type), data))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(doc)
			})
		},
	}
	create.Flags().StringVar(&opts.Type, "type", "", "type name")
	create.Flags().StringVar(&opts.Data, "data", "{}", "fields as a JSON object (inline or @file)")

	get := &cobra.Command{
		Use:           "get <id>",
		Short:         "Show a document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				doc, ok := session.FetchAs[*model.Entity](s.GetDocument(ctx, byID(args[0])))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(doc)
			})
		},
	}

	search := &cobra.Command{
		Use:   "search",
		Short: "Search documents",
		Long: `Search documents. --where takes an object of field values, or an
["AND"|"OR", ...] array. Recognized attributes are prefixed with $.

Examples:
  nopg doc search --type Person --where '{"name":"Ada"}'
  nopg doc search --where '["OR", {"tag":"a"}, {"tag":"b"}]' --order -$createdAt
  nopg doc search --where '{"a":1,"b":2}' --any --fields a,b`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			predicate, err := predicateArg(opts.Where)
			if err != nil {
				return err
			}
			searchOpts := queryir.Options{Order: opts.Order, Fields: opts.Fields}
			if opts.Any {
				searchOpts.Match = queryir.MatchAny
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				docs, ok := session.FetchAs[[]*model.Entity](s.Search(ctx, typeArg(opts.Type), predicate, searchOpts))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(docs)
			})
		},
	}
	search.Flags().StringVar(&opts.Type, "type", "", "restrict to a type name")
	search.Flags().StringVar(&opts.Where, "where", "", "predicate as JSON (inline or @file)")
	search.Flags().StringVar(&opts.Order, "order", "", "order key, prefix - for descending")
	search.Flags().StringSliceVar(&opts.Fields, "fields", nil, "fields to return")
	search.Flags().BoolVar(&opts.Any, "any", false, "match any top-level field instead of all")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Merge fields into a document",
		Long: `Merge fields into a document. Fields not named keep their values. Typed
documents are revalidated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := objectArg("data", opts.Data)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				current, ok := session.FetchAs[*model.Entity](s.GetDocument(ctx, byID(args[0])))
				if !ok {
					return s.Err()
				}
				doc, ok := session.FetchAs[*model.Entity](s.Update(ctx, current, data))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(doc)
			})
		},
	}
	update.Flags().StringVar(&opts.Data, "data", "{}", "fields as a JSON object (inline or @file)")

	del := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a document and its attachments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				target := model.New(model.KindDocument)
				if err := target.SetAttr("id", args[0]); err != nil {
					return err
				}
				doc, ok := session.FetchAs[*model.Entity](s.Delete(ctx, target))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(doc)
			})
		},
	}

	cmd.AddCommand(create, get, search, update, del)
	return cmd
}

// byID is the predicate selecting one entity by id.
func byID(id string) map[string]any {
	return map[string]any{model.Sigil + "id": id}
}

// typeArg is nil for untyped, else the type name.
func typeArg(name string) any {
	if name == "" {
		return nil
	}
	return name
}
