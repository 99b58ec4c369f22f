package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template names
const (
	PgpassHint        = "pgpass-hint"
	MyCnfHint         = "mycnf-hint"
	PgRestoreCustom   = "pg-restore-custom"
	PgRestorePlain    = "pg-restore-plain"
	MySQLRestorePlain = "mysql-restore-plain"
)

// builtin holds the default content of every template. A file named
// <name>.template in one of the search paths overrides it.
var builtin = map[string]string{
	PgpassHint: `Hint: create configuration file with nano ~/.pgpass
# hostname:port:database:username:password
*:*:{{DB_NAME}}:{{DB_USER}}:xxx
`,
	MyCnfHint: `Hint: create configuration file with nano ~/.my.cnf
[client]
user = {{DB_USER}}
password = xxx
host = 127.0.0.1
`,
	PgRestoreCustom:   "Restore me with: `pg_restore {{DUMP_FILE}} --clean --exit-on-error --format=custom --jobs=2 --verbose -n public --dbname={{DB_NAME}} [--data-only][--schema-only]`\n",
	PgRestorePlain:    "Restore me with: `psql --file={{DUMP_FILE}} --dbname={{DB_NAME}}`\n",
	MySQLRestorePlain: "Restore me with: `mysql {{DB_NAME}} < {{DUMP_FILE}}`\n",
}

// TemplateData holds variables for template rendering.
type TemplateData map[string]string

// SearchDirs lists the directories checked for template overrides, in order.
var SearchDirs = []string{
	filepath.Join(".", "templates"),
	filepath.Join(".", "config", "templates"),
}

// GetTemplatePaths returns the override search paths for a template.
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".template"
	paths := make([]string, 0, len(SearchDirs))
	for _, dir := range SearchDirs {
		paths = append(paths, filepath.Join(dir, filename))
	}
	return paths
}

// GetTemplate returns the raw template content by name, preferring an
// override file from SearchDirs over the built-in default.
func GetTemplate(name string) (string, error) {
	content, ok := builtin[name]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	for _, path := range GetTemplatePaths(name) {
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}

	return content, nil
}

// Render renders a template with the given data.
// Uses {{PLACEHOLDER}} syntax for variable substitution.
//
// Example:
//
//	data := TemplateData{
//	    "DB_NAME": "shop",
//	    "DUMP_FILE": "data/backup/shop_2024-01-01_00.00.00.backup",
//	}
//	rendered, err := Render(PgRestoreCustom, data)
func Render(templateName string, data TemplateData) (string, error) {
	tmplContent, err := GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	rendered := tmplContent
	for key, value := range data {
		placeholder := fmt.Sprintf("{{%s}}", key)
		rendered = strings.ReplaceAll(rendered, placeholder, value)
	}

	return rendered, nil
}
