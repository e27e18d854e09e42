package api

import (
	"fmt"
	"os"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/categorize"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/service"
)

// loadCategorizer builds the keyword engine from a YAML rules file, or from
// the default rules when path is empty.
func loadCategorizer(path string) (service.Categorizer, error) {
	if path == "" {
		return categorize.NewEngine(categorize.DefaultRules()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category rules: %w", err)
	}
	rules, err := categorize.ParseRules(data)
	if err != nil {
		return nil, err
	}
	return categorize.NewEngine(rules), nil
}
