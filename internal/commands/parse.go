package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-engine/cmd/api"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

func newParseCommand(a *app) *cobra.Command {
	var templateID string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a statement and print its transactions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			return a.withDependencies(cmd.Context(), func(deps *api.Dependencies) error {
				res := deps.StatementService.ParseStatement(cmd.Context(), doc, templateID)
				if err := writeIndented(cmd, res); err != nil {
					return err
				}
				if !res.Success {
					if res.Err != nil {
						return res.Err
					}
					return errors.New(res.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&templateID, "template", "t", "", "template identifier (required)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func readDocument(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return model.Document{Name: filepath.Base(path), Data: data}, nil
}

func writeIndented(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
