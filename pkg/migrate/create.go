package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)
	createNameRe   = regexp.MustCompile(`^create_([a-z_][a-z0-9_]*)$`)
)

var migrationTmpl = template.Must(template.New("migration").Parse(`-- {{.Name}} ({{.Dialect}})
-- +goose Up
-- +goose StatementBegin
{{- if .Table}}
CREATE TABLE IF NOT EXISTS {{.Table}} (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
{{- else}}
SELECT 1;
{{- end}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
{{- if .Table}}
DROP TABLE IF EXISTS {{.Table}};
{{- else}}
SELECT 1;
{{- end}}
-- +goose StatementEnd
`))

type migrationFile struct {
	Name    string
	Dialect string
	Table   string
}

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql stamped with
// the current UTC time. Names of the form create_<table> get a table skeleton.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigrationAt(dir, name, time.Now().UTC())
}

func createSQLMigrationAt(dir, name string, at time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	filename := fmt.Sprintf("%s_%s.sql", at.UTC().Format(versionLayout), safe)
	if !sqlFileRe.MatchString(filename) {
		return "", fmt.Errorf("generated filename %q does not match migration naming", filename)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	if clash, err := versionInUse(dir, filename[:len(versionLayout)]); err != nil {
		return "", err
	} else if clash != "" {
		return "", fmt.Errorf("version already used by %s", clash)
	}

	data := migrationFile{Name: safe, Dialect: dialect}
	if m := createNameRe.FindStringSubmatch(safe); m != nil {
		data.Table = m[1]
	}

	var b strings.Builder
	if err := migrationTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render migration: %w", err)
	}

	fullpath := filepath.Join(dir, filename)
	f, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", fullpath, err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// versionInUse returns the existing file carrying version, if any.
func versionInUse(dir, version string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, version+"_*.sql"))
	if err != nil {
		return "", fmt.Errorf("list migrations: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	return filepath.Base(matches[0]), nil
}
