// Package placeholder replaces {{fieldName}} tokens in element content.
//
// Matching is literal and case-insensitive under Unicode case folding, the
// same key Fold returns. Tokens with no matching binding
// are left in place; markup in the content is never interpreted.
package placeholder

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Binding is a (name, value) pair to substitute.
type Binding struct {
	Name  string
	Value string
}

var tokenPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Token returns the literal placeholder for a field name.
func Token(name string) string {
	return "{{" + name + "}}"
}

// Fold is the comparison key for field names. Two names match a token
// alike exactly when their keys are equal.
func Fold(name string) string {
	return cases.Fold().String(name)
}

// Substitute replaces every occurrence of each binding's token with its
// value. Bindings are applied in order.
func Substitute(content string, bindings []Binding) string {
	if content == "" || !strings.Contains(content, "{{") {
		return content
	}
	for _, b := range bindings {
		if b.Name == "" {
			continue
		}
		key := Fold(b.Name)
		content = tokenPattern.ReplaceAllStringFunc(content, func(tok string) string {
			if Fold(tok[2:len(tok)-2]) == key {
				return b.Value
			}
			return tok
		})
	}
	return content
}

// Tokens lists the names of all {{...}} tokens in content, in order of
// appearance, duplicates included.
func Tokens(content string) []string {
	matches := tokenPattern.FindAllStringSubmatch(content, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Unbound returns the distinct token names in content that no binding
// matches.
func Unbound(content string, bindings []Binding) []string {
	known := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		known[Fold(b.Name)] = struct{}{}
	}

	var unbound []string
	seen := make(map[string]struct{})
	for _, name := range Tokens(content) {
		key := Fold(name)
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unbound = append(unbound, name)
	}
	return unbound
}
