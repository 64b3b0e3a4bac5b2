package sweep

import (
	"fmt"
	"regexp"

	"github.com/zclconf/go-cty/cty"
)

// placeholderRegex matches `{param}` tokens in argument and artifact templates.
var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Render substitutes every `{param}` placeholder in the template with the
// instance's value for that parameter. An unknown placeholder is an error so
// a typo in a grid file cannot silently produce a wrong artifact path.
func Render(template string, params map[string]cty.Value) (string, error) {
	var renderErr error
	rendered := placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		val, ok := params[name]
		if !ok {
			if renderErr == nil {
				renderErr = fmt.Errorf("template %q references unknown parameter %q", template, name)
			}
			return match
		}
		s, err := FormatValue(val)
		if err != nil {
			if renderErr == nil {
				renderErr = fmt.Errorf("template %q parameter %q: %w", template, name, err)
			}
			return match
		}
		return s
	})
	if renderErr != nil {
		return "", renderErr
	}
	return rendered, nil
}

// RenderAll renders a slice of templates, typically a step's argument list.
func RenderAll(templates []string, params map[string]cty.Value) ([]string, error) {
	if len(templates) == 0 {
		return nil, nil
	}
	out := make([]string, len(templates))
	for i, tmpl := range templates {
		rendered, err := Render(tmpl, params)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}

// Placeholders returns the distinct parameter names referenced by a template,
// in order of first appearance. Used to validate a step's templates against
// its matrix before any run starts.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, match := range placeholderRegex.FindAllStringSubmatch(template, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		names = append(names, match[1])
	}
	return names
}

// FormatValue converts a parameter value to its command-line string form.
// Strings pass through verbatim; numbers use the shortest decimal form, so
// a seed of 5 renders as "5" and a variance of 0.05 as "0.05".
func FormatValue(val cty.Value) (string, error) {
	if val.IsNull() {
		return "", fmt.Errorf("value is null")
	}

	switch val.Type() {
	case cty.String:
		return val.AsString(), nil
	case cty.Number:
		f := val.AsBigFloat()
		if f.IsInt() {
			return f.Text('f', 0), nil
		}
		return f.Text('f', -1), nil
	case cty.Bool:
		if val.True() {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("cannot render %s as a command-line token", val.Type().FriendlyName())
	}
}
