// Package database builds and runs the database dump, restore and schema
// commands for a target's engine.
package database

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"fdep/internal/security"
	"fdep/pkg/templates"
)

var (
	ErrUnsupportedEngine = errors.New("unsupported database engine")
	ErrDumpFailed        = errors.New("database dump failed")
)

// Engine is a supported database engine.
type Engine string

const (
	Postgres Engine = "postgresql"
	MySQL    Engine = "mysql"
)

// ParseEngine validates a db_engine value.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case Postgres, MySQL:
		return Engine(s), nil
	}
	return "", fmt.Errorf("%w: %q (expected postgresql or mysql)", ErrUnsupportedEngine, s)
}

// Format is a pg_dump output format.
type Format string

const (
	FormatCustom Format = "custom"
	FormatPlain  Format = "plain"
)

// ParseFormat validates a dump format. Empty selects custom.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatCustom, nil
	case FormatCustom, FormatPlain:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown dump format %q (expected custom or plain)", s)
}

const (
	// BackupDir holds engine dumps, relative to deploy_path.
	BackupDir = "data/backup"
	// TimestampLayout names dump files, always in UTC.
	TimestampLayout = "2006-01-02_15.04.05"
)

// Dump describes one planned dump.
type Dump struct {
	Engine  Engine
	Format  Format
	DBName  string
	File    string
	Command string
}

// PlanDump builds the dump command for engine. Postgres dumps are named
// after the project, MySQL dumps after the database.
func PlanDump(engine Engine, project, dbName string, format Format, now time.Time) (Dump, error) {
	ts := now.UTC().Format(TimestampLayout)

	switch engine {
	case Postgres:
		ext := "backup"
		if format == FormatPlain {
			ext = "sql"
		}
		file := path.Join(BackupDir, fmt.Sprintf("%s_%s.%s", project, ts, ext))
		cmd := fmt.Sprintf("pg_dump --format=%s --dbname=%s --encoding=utf8 --verbose --schema=public --clean -f %s",
			format, dbName, file)
		return Dump{Engine: engine, Format: format, DBName: dbName, File: file, Command: cmd}, nil

	case MySQL:
		file := path.Join(BackupDir, fmt.Sprintf("%s_%s.sql", dbName, ts))
		cmd := fmt.Sprintf("mysqldump --databases %s > %s", dbName, file)
		return Dump{Engine: engine, Format: FormatPlain, DBName: dbName, File: file, Command: cmd}, nil
	}

	return Dump{}, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
}

// RestoreHint renders the instructions printed after a successful dump.
func (d Dump) RestoreHint() (string, error) {
	name := templates.MySQLRestorePlain
	if d.Engine == Postgres {
		name = templates.PgRestorePlain
		if d.Format == FormatCustom {
			name = templates.PgRestoreCustom
		}
	}
	return templates.Render(name, templates.TemplateData{
		"DB_NAME":   d.DBName,
		"DUMP_FILE": d.File,
	})
}

// CredentialsHint renders the credentials file example printed when a dump
// fails.
func CredentialsHint(engine Engine, dbName, user string) (string, error) {
	name := templates.PgpassHint
	if engine == MySQL {
		name = templates.MyCnfHint
	}
	return templates.Render(name, templates.TemplateData{
		"DB_NAME": dbName,
		"DB_USER": user,
	})
}

// RestoreCommand builds the command that loads file into dbName. Postgres
// ".backup" files go through pg_restore, anything else through psql.
func RestoreCommand(engine Engine, dbName, file string) (string, error) {
	if err := validateDumpPath(file); err != nil {
		return "", err
	}
	quoted := shellquote.Join(file)

	switch engine {
	case Postgres:
		if strings.HasSuffix(file, ".backup") {
			return fmt.Sprintf("pg_restore %s --clean --exit-on-error --format=custom --jobs=2 --verbose -n public --dbname=%s",
				quoted, dbName), nil
		}
		return fmt.Sprintf("psql --file=%s --dbname=%s", quoted, dbName), nil
	case MySQL:
		return fmt.Sprintf("mysql %s < %s", dbName, quoted), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
}

// DropSchemaCommand builds the command that recreates the public schema.
// Only postgres has one.
func DropSchemaCommand(engine Engine, dbName string) (string, error) {
	if engine != Postgres {
		return "", fmt.Errorf("%w: drop schema is only available for postgresql, got %q", ErrUnsupportedEngine, engine)
	}
	sql := "DROP SCHEMA public CASCADE; CREATE SCHEMA public; GRANT ALL ON SCHEMA public TO postgres; GRANT ALL ON SCHEMA public TO public;"
	return fmt.Sprintf("sudo -u postgres psql --dbname=%s -c %s", dbName, shellquote.Join(sql)), nil
}

func validateDumpPath(file string) error {
	if file == "" {
		return fmt.Errorf("dump file cannot be empty")
	}
	if strings.HasPrefix(file, "-") {
		return fmt.Errorf("dump file cannot start with '-'")
	}
	for _, elem := range strings.Split(file, "/") {
		if elem == ".." {
			return fmt.Errorf("dump file contains traversal elements: %s", file)
		}
	}
	if security.ContainsShellMetachars(file) {
		return fmt.Errorf("dump file contains shell metacharacters: %s", file)
	}
	return nil
}
