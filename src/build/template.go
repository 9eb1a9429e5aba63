package build

import "strings"

// Placeholder is the token replaced by the concrete version in image-version
// labels and build-arg values.
const Placeholder = "{v}"

// Render substitutes every occurrence of {v} in tmpl with version.
//
//	Render("v{v}", "1.2.3")         → "v1.2.3"
//	Render("{v}-{v}", "2")          → "2-2"
//	Render("static", "1.2.3")       → "static"
func Render(tmpl, version string) string {
	return strings.ReplaceAll(tmpl, Placeholder, version)
}

// RenderArgs returns a copy of args with Render applied to every value.
// Keys are left untouched.
func RenderArgs(args map[string]string, version string) map[string]string {
	if len(args) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = Render(v, version)
	}
	return out
}
