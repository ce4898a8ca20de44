package prompt

import (
	"fmt"
	"regexp"
	"sort"
)

// Default prompts for the alpha research run.
const (
	DefaultSystemInstruction = "You are an elite cryptocurrency alpha researcher. " +
		"Use your tools to: 1. Fetch live prices. 2. Search recent news. " +
		"3. Output a concise 'Alpha Report' on whether to long or short."
	DefaultUserPrompt = "Provide the latest Alpha Report on {{assets}} based on live news and prices."
	DefaultAssets     = "Bitcoin and Solana"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Template is a string with double-brace placeholders.
// Example: "Report on {{assets}}" with vars {"assets": "SOL"} -> "Report on SOL".
type Template struct {
	Text string
}

// NewTemplate returns a Template with the provided text.
func NewTemplate(text string) Template {
	return Template{Text: text}
}

// Render substitutes placeholders in a single pass. Unknown keys are left untouched.
func (t Template) Render(vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(t.Text, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if val, ok := vars[key]; ok {
			return fmt.Sprint(val)
		}
		return m
	})
}

// Missing lists placeholder names absent from vars, sorted and deduplicated.
func (t Template) Missing(vars map[string]any) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(t.Text, -1) {
		key := m[1]
		if _, ok := vars[key]; ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
