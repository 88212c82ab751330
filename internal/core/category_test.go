package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyPrecedence(t *testing.T) {
	rules := DefaultRules()
	cases := []struct {
		name string
		paid bool
		want Category
	}{
		{"Juicio Laboral", true, CategoryPaid},
		{"Juicio LABORAL", false, CategoryLabor},
		{"Civil y laboral", false, CategoryLabor},
		{"Daños - Civil", false, CategoryCivil},
		{"Contencioso Administrativo", false, CategoryCivil},
		{"Sucesión", false, CategoryOther},
		{"", false, CategoryOther},
	}
	for _, tc := range cases {
		if got := rules.Classify(tc.name, tc.paid); got != tc.want {
			t.Fatalf("Classify(%q, %v) = %s, want %s", tc.name, tc.paid, got, tc.want)
		}
	}
}

func TestRulesLabelsAndOrder(t *testing.T) {
	rules := DefaultRules()
	labels := map[Category]string{
		CategoryPaid:  "COBRADO",
		CategoryLabor: "LABORAL",
		CategoryCivil: "CIVIL / CONTENCIOSO ADM.",
		CategoryOther: "OTROS",
	}
	for c, want := range labels {
		if got := rules.Label(c); got != want {
			t.Fatalf("Label(%s) = %q, want %q", c, got, want)
		}
	}
	order := rules.Categories()
	if len(order) != 3 || order[0] != CategoryLabor || order[1] != CategoryCivil || order[2] != CategoryPaid {
		t.Fatalf("unexpected bucket order: %v", order)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `categories:
  - category: FAMILIA
    label: Familia
    keywords: [" Divorcio ", alimentos, ""]
  - category: LABORAL
    keywords: [laboral]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := rules.Classify("DIVORCIO vincular", false); got != "FAMILIA" {
		t.Fatalf("expected FAMILIA, got %s", got)
	}
	if got := rules.Classify("Cualquier cosa", false); got != CategoryOther {
		t.Fatalf("blank keywords must not match everything, got %s", got)
	}
	if got := rules.Label("FAMILIA"); got != "Familia" {
		t.Fatalf("label = %q", got)
	}
	if got := rules.Label(CategoryLabor); got != "LABORAL" {
		t.Fatalf("rule without label falls back to the category, got %q", got)
	}
}

func TestLoadRulesInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := map[string]string{
		"empty.yaml":    "categories: []\n",
		"reserved.yaml": "categories:\n  - category: COBRADO\n    keywords: [x]\n",
		"nokw.yaml":     "categories:\n  - category: X\n    keywords: []\n",
		"dup.yaml":      "categories:\n  - category: X\n    keywords: [a]\n  - category: X\n    keywords: [b]\n",
		"syntax.yaml":   "categories: [\n",
	}
	for name, content := range bad {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := LoadRules(path); !errors.Is(err, ErrInvalidRules) {
			t.Fatalf("%s: expected ErrInvalidRules, got %v", name, err)
		}
	}
	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
