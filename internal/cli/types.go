package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
	"github.com/roach88/nopg/internal/session"
)

// TypeOptions holds flags for the type subcommands.
type TypeOptions struct {
	*RootOptions
	Schema    string // JSON Schema, inline or @file
	Validator string // CUE rule or builtin:<name>
	Meta      string // JSON object
}

// NewTypeCommand creates the type command group.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TypeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "type",
		Short: "Manage document types",
	}

	declare := &cobra.Command{
		Use:   "declare <name>",
		Short: "Create a type, or replace the schema and validator of an existing one",
		Long: `Create a type, or replace the schema and validator of an existing one.
The type keeps its id when it already exists.

Examples:
  nopg type declare Person --schema @person.schema.json
  nopg type declare Contact --validator 'email: #Email'
  nopg type declare Flat --validator builtin:flat --meta '{"owner":"ops"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return declareType(cmd, opts, args[0])
		},
	}
	declare.Flags().StringVar(&opts.Schema, "schema", "", "JSON Schema (inline JSON or @file)")
	declare.Flags().StringVar(&opts.Validator, "validator", "", "CUE validator rule or builtin:<name>")
	declare.Flags().StringVar(&opts.Meta, "meta", "", "extra fields as a JSON object")

	get := &cobra.Command{
		Use:           "get <name>",
		Short:         "Show a type",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				typ, ok := session.FetchAs[*model.Entity](s.GetType(ctx, args[0]))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(typ)
			})
		},
	}

	exists := &cobra.Command{
		Use:           "exists <name>",
		Short:         "Report whether a type exists",
		Long:          "Report whether a type exists. Exits 1 when it does not.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var found bool
			err := withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				found, _ = session.FetchAs[bool](s.TypeExists(ctx, args[0]))
				return rootOpts.output(cmd).Summary(fmt.Sprintf("%t", found), map[string]any{"exists": found})
			})
			if err == nil && !found {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("type %q does not exist", args[0]), Reported: true}
			}
			return err
		},
	}

	var order string
	list := &cobra.Command{
		Use:           "list",
		Short:         "List types",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session.Session) error {
				types, ok := session.FetchAs[[]*model.Entity](s.SearchTypes(ctx, nil, queryir.Options{Order: order}))
				if !ok {
					return s.Err()
				}
				return rootOpts.output(cmd).Success(types)
			})
		},
	}
	list.Flags().StringVar(&order, "order", "$name", "order key, prefix - for descending")

	apply := &cobra.Command{
		Use:   "apply <manifest.yaml>",
		Short: "Declare every type in a YAML manifest",
		Long: `Declare every type in a YAML manifest in one transaction.

Manifest format:
  types:
    - name: Person
      schema:
        type: object
        required: [name]
      validator: "name: #NonEmptyString"
      meta: { owner: people-team }`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyManifest(cmd, rootOpts, args[0])
		},
	}

	cmd.AddCommand(declare, get, exists, list, apply)
	return cmd
}

func declareType(cmd *cobra.Command, opts *TypeOptions, name string) error {
	data, err := objectArg("meta", opts.Meta)
	if err != nil {
		return err
	}
	if opts.Schema != "" {
		schema, err := objectArg("schema", opts.Schema)
		if err != nil {
			return err
		}
		data[model.Sigil+"schema"] = schema
	}
	if opts.Validator != "" {
		data[model.Sigil+"validator"] = opts.Validator
	}

	return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session.Session) error {
		typ, ok := session.FetchAs[*model.Entity](s.DeclareType(ctx, name, data))
		if !ok {
			return s.Err()
		}
		return opts.output(cmd).Success(typ)
	})
}

// Manifest is a set of type declarations.
type Manifest struct {
	Types []ManifestType `yaml:"types"`
}

// ManifestType is one declared type.
type ManifestType struct {
	Name      string         `yaml:"name"`
	Schema    map[string]any `yaml:"schema,omitempty"`
	Validator string         `yaml:"validator,omitempty"`
	Meta      map[string]any `yaml:"meta,omitempty"`
}

// LoadManifest reads and parses a type manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Types) == 0 {
		return nil, fmt.Errorf("manifest declares no types")
	}
	for i, t := range m.Types {
		if t.Name == "" {
			return nil, fmt.Errorf("types[%d]: name is required", i)
		}
	}
	return &m, nil
}

// data builds the DeclareType input for t.
func (t ManifestType) data() map[string]any {
	data := make(map[string]any, len(t.Meta)+2)
	for k, v := range t.Meta {
		data[k] = v
	}
	if t.Schema != nil {
		data[model.Sigil+"schema"] = t.Schema
	}
	if t.Validator != "" {
		data[model.Sigil+"validator"] = t.Validator
	}
	return data
}

func applyManifest(cmd *cobra.Command, opts *RootOptions, path string) error {
	m, err := LoadManifest(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}

	return withSession(cmd, opts, func(ctx context.Context, s *session.Session) error {
		for _, t := range m.Types {
			s.DeclareType(ctx, t.Name, t.data())
		}
		if err := s.Err(); err != nil {
			return err
		}

		declared := make([]*model.Entity, 0, len(m.Types))
		for _, v := range s.FetchAll() {
			declared = append(declared, v.(*model.Entity))
		}
		opts.Logger.Info("applied manifest", "file", path, "types", len(declared))
		return opts.output(cmd).Success(declared)
	})
}
