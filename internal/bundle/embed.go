package bundle

import "embed"

//go:embed js/*.js
var jsFiles embed.FS

// mustReadJSFile reads an embedded JS file and panics on error.
// The files are embedded at compile time, so a miss is a build defect.
func mustReadJSFile(path string) Source {
	content, err := jsFiles.ReadFile(path)
	if err != nil {
		panic("failed to read embedded JS file " + path + ": " + err.Error())
	}
	return Source{Name: path, Text: string(content)}
}

// DefaultBuilder returns a Builder preloaded with the embedded bundles.
// Callers may register extra bundles before building.
func DefaultBuilder() *Builder {
	return NewBuilder().
		RegisterSource(Utility, mustReadJSFile("js/utils.js")).
		RegisterSource(Dates, mustReadJSFile("js/dates.js")).
		RegisterSource(FormLogic, mustReadJSFile("js/formlogic.js")).
		RegisterSource(ObjectModel, mustReadJSFile("js/shim.js")).
		RegisterSource(Templating, mustReadJSFile("js/template.js"))
}

// Default builds the embedded bundles.
func Default() (*Registry, error) {
	return DefaultBuilder().Build()
}

// ProcessDeps is the load order the process orchestrator needs.
// The object model shim depends on everything before it.
func ProcessDeps() []string {
	return []string{Utility, Dates, FormLogic, ObjectModel}
}

// TemplateDeps is the load order for template rendering.
func TemplateDeps() []string {
	return []string{Utility, Dates, Templating}
}
