package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-engine/cmd/api"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

func newTemplatesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tpl"},
		Short:   "Manage statement templates",
	}

	cmd.AddCommand(newTemplatesListCommand(a))
	cmd.AddCommand(newTemplatesValidateCommand(a))
	cmd.AddCommand(newTemplatesImportCommand(a))
	cmd.AddCommand(newTemplatesExportCommand(a))
	cmd.AddCommand(newTemplatesTestCommand(a))
	cmd.AddCommand(newTemplatesSeedCommand(a))

	return cmd
}

func newTemplatesListCommand(a *app) *cobra.Command {
	var bank, formatStr string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := model.ParseFormat(formatStr)
			if formatStr != "" && format == model.FormatUnknown {
				return fmt.Errorf("unknown format %q", formatStr)
			}

			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				list, err := deps.TemplateManager.Available(cmd.Context(), bank, format)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "IDENTIFIER\tBANK\tFORMAT\tPARSER")
				for _, t := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Identifier, t.BankName, t.Format, t.ParserModule)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&bank, "bank", "", "filter by bank name (fuzzy)")
	cmd.Flags().StringVar(&formatStr, "format", "", "filter by format (PDF or CSV)")

	return cmd
}

func newTemplatesValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a JSON or YAML template without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTemplate(args[0])
			if err != nil {
				return err
			}

			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				res := deps.TemplateManager.Validate(t)
				if res.IsValid {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", t.Identifier)
					return nil
				}
				for _, msg := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", msg)
				}
				return &template.ValidationError{Identifier: t.Identifier, Errors: res.Errors}
			})
		},
	}
}

func newTemplatesImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate and store a template, replacing any with the same identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTemplate(args[0])
			if err != nil {
				return err
			}

			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				if err := deps.TemplateManager.Import(cmd.Context(), t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", t.Identifier)
				return nil
			})
		},
	}
}

func newTemplatesExportCommand(a *app) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "export <identifier>",
		Short: "Print a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				t, err := deps.TemplateManager.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				encode := template.EncodeJSON
				if asYAML {
					encode = template.EncodeYAML
				}
				data, err := encode(t)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if _, err := out.Write(data); err != nil {
					return err
				}
				if !bytes.HasSuffix(data, []byte("\n")) {
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")

	return cmd
}

func newTemplatesTestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <identifier> <file>",
		Short: "Run a stored template against a sample statement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[1])
			if err != nil {
				return err
			}

			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				res := deps.TemplateManager.Test(cmd.Context(), args[0], doc)
				if err := writeIndented(cmd, res); err != nil {
					return err
				}
				if !res.Success {
					return errors.New(strings.Join(res.Errors, "; "))
				}
				return nil
			})
		},
	}
}

func newTemplatesSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [directory]",
		Short: "Store the bundled templates, or every template file in a directory",
		Long: `seed creates templates that are not stored yet. Templates that already
exist are left untouched; use import to replace one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				seeds []template.Template
				err   error
			)
			if len(args) == 1 {
				seeds, err = template.LoadDir(os.DirFS(args[0]), ".")
			} else {
				seeds, err = template.Builtins()
			}
			if err != nil {
				return err
			}

			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				created, err := api.SeedTemplates(cmd.Context(), deps.TemplateManager, seeds, a.logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d templates\n", created, len(seeds))
				return nil
			})
		},
	}
}

func readTemplate(path string) (template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return template.Template{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return template.Decode(data)
}
