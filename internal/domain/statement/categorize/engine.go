// Package categorize assigns categories to parsed transactions from
// description keywords. Rules are independent of statement templates.
package categorize

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

// Rule maps a description keyword to a category.
type Rule struct {
	Keyword  string `yaml:"keyword" json:"keyword"`
	Category string `yaml:"category" json:"category"`
	// Priority breaks ties when several keywords match; higher wins.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// MatchResult is the winning rule for one description.
type MatchResult struct {
	Keyword  string
	Category string
	Priority int
}

// Engine matches all keywords in a single pass over each description using
// Aho-Corasick. Safe for concurrent use; Build may be called at any time.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata [][]MatchResult // several rules may share a keyword
	mu       sync.RWMutex
}

// NewEngine creates an engine from rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build replaces the matcher. Keywords are matched case-insensitively.
func (e *Engine) Build(rules []Rule) {
	patternToIndex := make(map[string]int)
	patterns := make([]string, 0, len(rules))
	metadata := make([][]MatchResult, 0, len(rules))

	for _, rule := range rules {
		keyword := strings.ToUpper(strings.TrimSpace(rule.Keyword))
		if keyword == "" || rule.Category == "" {
			continue
		}
		result := MatchResult{Keyword: rule.Keyword, Category: rule.Category, Priority: rule.Priority}
		if idx, exists := patternToIndex[keyword]; exists {
			metadata[idx] = append(metadata[idx], result)
			continue
		}
		patternToIndex[keyword] = len(patterns)
		patterns = append(patterns, keyword)
		metadata = append(metadata, []MatchResult{result})
	}

	var matcher *ahocorasick.Matcher
	if len(patterns) > 0 {
		matcher = ahocorasick.NewStringMatcher(patterns)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.matcher = matcher
	e.patterns = patterns
	e.metadata = metadata
}

// Match returns the best rule for description, or nil. Higher priority wins,
// then the longer keyword, then the rule declared first.
func (e *Engine) Match(description string) *MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.match(description)
}

func (e *Engine) match(description string) *MatchResult {
	if e.matcher == nil {
		return nil
	}
	hits := e.matcher.MatchThreadSafe([]byte(strings.ToUpper(description)))

	var best *MatchResult
	bestIdx := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			m := e.metadata[idx][i]
			if best == nil || better(m, idx, *best, bestIdx, e.patterns) {
				best, bestIdx = &m, idx
			}
		}
	}
	return best
}

func better(m MatchResult, idx int, cur MatchResult, curIdx int, patterns []string) bool {
	if m.Priority != cur.Priority {
		return m.Priority > cur.Priority
	}
	if len(patterns[idx]) != len(patterns[curIdx]) {
		return len(patterns[idx]) > len(patterns[curIdx])
	}
	return idx < curIdx
}

// Categorize returns a copy of txs with categories assigned. Transactions
// that match nothing keep model.DefaultCategory.
func (e *Engine) Categorize(txs []model.Transaction) []model.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.Transaction, len(txs))
	for i, tx := range txs {
		if m := e.match(tx.Description); m != nil {
			tx.Category = m.Category
		} else if tx.Category == "" {
			tx.Category = model.DefaultCategory
		}
		out[i] = tx
	}
	return out
}

// PatternCount returns the number of distinct keywords loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// ParseRules reads a YAML list of rules.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}
	return rules, nil
}

// DefaultRules cover common retail and banking narrations.
func DefaultRules() []Rule {
	return []Rule{
		{Keyword: "SALARY", Category: "Income"},
		{Keyword: "PAYROLL", Category: "Income"},
		{Keyword: "INTEREST", Category: "Income"},
		{Keyword: "RENT", Category: "Housing"},
		{Keyword: "ELECTRICITY", Category: "Utilities"},
		{Keyword: "WATER BILL", Category: "Utilities"},
		{Keyword: "NETFLIX", Category: "Subscriptions", Priority: 10},
		{Keyword: "SPOTIFY", Category: "Subscriptions", Priority: 10},
		{Keyword: "UBER", Category: "Transport"},
		{Keyword: "FUEL", Category: "Transport"},
		{Keyword: "SWIGGY", Category: "Food & Drink"},
		{Keyword: "ZOMATO", Category: "Food & Drink"},
		{Keyword: "STARBUCKS", Category: "Food & Drink"},
		{Keyword: "RESTAURANT", Category: "Food & Drink"},
		{Keyword: "AMAZON", Category: "Shopping"},
		{Keyword: "ATM", Category: "Cash"},
		{Keyword: "ATW", Category: "Cash"},
		{Keyword: "GROCERY", Category: "Groceries"},
		{Keyword: "SUPERMARKET", Category: "Groceries"},
	}
}
