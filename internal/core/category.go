package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CategoryPaid  Category = "COBRADO"
	CategoryLabor Category = "LABORAL"
	CategoryCivil Category = "CIVIL/CONTENCIOSO"
	CategoryOther Category = "OTROS"
)

var ErrInvalidRules = errors.New("invalid category rules")

type (
	// Category is a derived grouping of cards, computed from the card name
	// and its paid flag.
	Category string

	// Rule places a card in Category when its name contains any keyword.
	Rule struct {
		Category Category `yaml:"category"`
		Label    string   `yaml:"label"`
		Keywords []string `yaml:"keywords"`
	}

	// Rules are evaluated in order; the first match wins.
	Rules []Rule
)

// DefaultRules returns the built-in keyword rules.
func DefaultRules() Rules {
	return Rules{
		{Category: CategoryLabor, Label: "LABORAL", Keywords: []string{"laboral"}},
		{Category: CategoryCivil, Label: "CIVIL / CONTENCIOSO ADM.", Keywords: []string{"civil", "contencioso"}},
	}
}

// Match returns the category of the first rule with a keyword contained in
// name, ignoring case.
func (rs Rules) Match(name string) (Category, bool) {
	lower := strings.ToLower(name)
	for _, r := range rs {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Category, true
			}
		}
	}
	return "", false
}

// Classify applies the full precedence: paid cards are COBRADO, then the
// keyword rules, then OTROS.
func (rs Rules) Classify(name string, paid bool) Category {
	if paid {
		return CategoryPaid
	}
	if c, ok := rs.Match(name); ok {
		return c
	}
	return CategoryOther
}

// Label returns the display label for c.
func (rs Rules) Label(c Category) string {
	for _, r := range rs {
		if r.Category == c && r.Label != "" {
			return r.Label
		}
	}
	return string(c)
}

// Categories lists the bucket order: every rule category, then COBRADO.
func (rs Rules) Categories() []Category {
	out := make([]Category, 0, len(rs)+1)
	for _, r := range rs {
		out = append(out, r.Category)
	}
	return append(out, CategoryPaid)
}

// LoadRules reads keyword rules from a YAML file of the form
//
//	categories:
//	  - category: LABORAL
//	    label: LABORAL
//	    keywords: [laboral]
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var doc struct {
		Categories Rules `yaml:"categories"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := doc.Categories.Validate(); err != nil {
		return nil, err
	}
	for i := range doc.Categories {
		keywords := make([]string, 0, len(doc.Categories[i].Keywords))
		for _, kw := range doc.Categories[i].Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		doc.Categories[i].Keywords = keywords
	}
	return doc.Categories, nil
}

// Validate checks that every rule names a category and has keywords, and
// that the reserved COBRADO and OTROS categories are not redefined.
func (rs Rules) Validate() error {
	if len(rs) == 0 {
		return fmt.Errorf("%w: no categories defined", ErrInvalidRules)
	}
	seen := map[Category]bool{}
	for i, r := range rs {
		switch {
		case strings.TrimSpace(string(r.Category)) == "":
			return fmt.Errorf("%w: rule %d has no category", ErrInvalidRules, i)
		case r.Category == CategoryPaid || r.Category == CategoryOther:
			return fmt.Errorf("%w: category %s is reserved", ErrInvalidRules, r.Category)
		case seen[r.Category]:
			return fmt.Errorf("%w: category %s defined twice", ErrInvalidRules, r.Category)
		}
		seen[r.Category] = true
		hasKeyword := false
		for _, kw := range r.Keywords {
			if strings.TrimSpace(kw) != "" {
				hasKeyword = true
			}
		}
		if !hasKeyword {
			return fmt.Errorf("%w: category %s has no keywords", ErrInvalidRules, r.Category)
		}
	}
	return nil
}

func containsFold(s, lowerFragment string) bool {
	return strings.Contains(strings.ToLower(s), lowerFragment)
}
