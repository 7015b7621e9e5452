package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/scratchpad/internal/errors"
	"github.com/hpungsan/scratchpad/internal/ops"
)

// maxStdinBytes caps what a single command reads from stdin.
const maxStdinBytes = 64 << 20

// newCLIApp creates the CLI application with all commands. env is nil for
// help and version, which never reach an action.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "scratchpad",
		Usage:   "Multi-tenant notebook store",
		Version: Version,
		Commands: []*cli.Command{
			createCmd(env),
			readCmd(env),
			listCmd(env),
			deleteCmd(env),
			appendCmd(env),
			tagsCmd(env),
			namespacesCmd(env),
			searchCmd(env),
			validateCmd(env),
			statsCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// createCmd creates the create command.
func createCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a scratchpad (optionally reads a JSON array of cells from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Scratchpad id (generated when omitted)"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description"},
			&cli.StringFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Namespace"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "metadata", Aliases: []string{"m"}, Usage: "Extra metadata as a JSON object"},
		},
		Action: func(c *cli.Context) error {
			metadata := map[string]any{}
			if raw := c.String("metadata"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
					return outputError(errors.NewValidation("metadata must be a JSON object"))
				}
			}
			for flag, key := range map[string]string{"title": "title", "description": "description", "namespace": "namespace"} {
				if v := c.String(flag); v != "" {
					metadata[key] = v
				}
			}
			if tags := parseTags(c.String("tags")); tags != nil {
				metadata["tags"] = tags
			}

			input := ops.CreateInput{ScratchID: c.String("id"), Metadata: metadata}
			if stdinHasData() {
				raw, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				if raw != "" {
					if err := json.Unmarshal([]byte(raw), &input.Cells); err != nil {
						return outputError(errors.NewValidation("stdin must hold a JSON array of cells"))
					}
				}
			}

			output, err := ops.Create(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// readCmd creates the read command.
func readCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Read a scratchpad",
		ArgsUsage: "<scratch_id>",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{Name: "index", Aliases: []string{"i"}, Usage: "Cell index (repeatable)"},
			&cli.StringSliceFlag{Name: "cell-id", Usage: "Cell id (repeatable)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated cell tags"},
			&cli.StringSliceFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Allowed namespace (repeatable)"},
			&cli.BoolFlag{Name: "no-metadata", Usage: "Omit pad metadata"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "scratch_id")
			if err != nil {
				return err
			}
			includeMetadata := !c.Bool("no-metadata")
			output, err := ops.Read(c.Context, env, ops.ReadInput{
				ScratchID:       id,
				Indices:         c.IntSlice("index"),
				CellIDs:         c.StringSlice("cell-id"),
				Tags:            parseTags(c.String("tags")),
				Namespaces:      c.StringSlice("namespace"),
				IncludeMetadata: &includeMetadata,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List scratchpads",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Namespace filter (repeatable)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum results"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Namespaces: c.StringSlice("namespace"),
				Tags:       parseTags(c.String("tags")),
			}
			if c.IsSet("limit") {
				limit := c.Int("limit")
				input.Limit = &limit
			}
			output, err := ops.List(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a scratchpad",
		ArgsUsage: "<scratch_id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "scratch_id")
			if err != nil {
				return err
			}
			output, err := ops.Delete(c.Context, env, ops.DeleteInput{ScratchID: id})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// appendCmd creates the append command.
func appendCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "append",
		Usage:     "Append a cell (reads cell content from stdin)",
		ArgsUsage: "<scratch_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Value: "md", Usage: "Cell language"},
			&cli.StringFlag{Name: "cell-id", Usage: "Cell id (generated when omitted)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated cell tags"},
			&cli.BoolFlag{Name: "validate", Usage: "Reject the cell if validation fails"},
			&cli.StringFlag{Name: "schema", Usage: "JSON schema: inline JSON or scratchpad://schemas/<name>"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "scratch_id")
			if err != nil {
				return err
			}
			if !stdinHasData() {
				return outputError(errors.NewValidation("cell content must be piped via stdin"))
			}
			content, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(err)
			}

			cell := ops.CellInput{
				CellID:   c.String("cell-id"),
				Language: c.String("language"),
				Content:  content,
				Validate: c.Bool("validate"),
			}
			if schema := c.String("schema"); schema != "" {
				cell.JSONSchema = schema
			}
			if tags := parseTags(c.String("tags")); tags != nil {
				cell.Metadata = map[string]any{"tags": tags}
			}

			output, err := ops.Append(c.Context, env, ops.AppendInput{ScratchID: id, Cell: cell})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// tagsCmd creates the tags command.
func tagsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List scratchpad and cell tags",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Namespace filter (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListTags(c.Context, env, ops.ListTagsInput{Namespaces: c.StringSlice("namespace")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// namespacesCmd creates the namespaces command and its subcommands.
func namespacesCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "namespaces",
		Usage: "Manage namespaces (lists them when no subcommand is given)",
		Action: func(c *cli.Context) error {
			output, err := ops.NamespaceList(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Register a namespace",
				ArgsUsage: "<namespace>",
				Action: func(c *cli.Context) error {
					name, err := requireArg(c, "namespace")
					if err != nil {
						return err
					}
					output, err := ops.NamespaceCreate(c.Context, env, ops.NamespaceCreateInput{Namespace: name})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a namespace",
				ArgsUsage: "<old> <new>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-migrate", Usage: "Leave scratchpads under the old name"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.NewValidation("rename takes <old> and <new>"))
					}
					migrate := !c.Bool("no-migrate")
					output, err := ops.NamespaceRename(c.Context, env, ops.NamespaceRenameInput{
						OldNamespace:       c.Args().Get(0),
						NewNamespace:       c.Args().Get(1),
						MigrateScratchpads: &migrate,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a namespace",
				ArgsUsage: "<namespace>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cascade", Usage: "Also delete the namespace's scratchpads"},
				},
				Action: func(c *cli.Context) error {
					name, err := requireArg(c, "namespace")
					if err != nil {
						return err
					}
					output, err := ops.NamespaceDelete(c.Context, env, ops.NamespaceDeleteInput{
						Namespace:         name,
						DeleteScratchpads: c.Bool("cascade"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Semantic search over scratchpads and cells",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Namespace filter (repeatable)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum hits"},
		},
		Action: func(c *cli.Context) error {
			limit := c.Int("limit")
			output, err := ops.Search(c.Context, env, ops.SearchInput{
				Query:      strings.Join(c.Args().Slice(), " "),
				Namespaces: c.StringSlice("namespace"),
				Tags:       parseTags(c.String("tags")),
				Limit:      &limit,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// validateCmd creates the validate command.
func validateCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate cells of a scratchpad",
		ArgsUsage: "<scratch_id>",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{Name: "index", Aliases: []string{"i"}, Usage: "Cell index (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "scratch_id")
			if err != nil {
				return err
			}
			output, err := ops.Validate(c.Context, env, ops.ValidateInput{ScratchID: id, Indices: c.IntSlice("index")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show scratchpad and cell totals for the active tenant",
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, env)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// requireArg returns the first positional argument or a CLI error naming it.
func requireArg(c *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", outputError(errors.NewValidation(name + " argument is required"))
	}
	return v, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	sErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, failing when it exceeds limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewValidation(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
