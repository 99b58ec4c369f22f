package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fdep/internal/console"
	"fdep/internal/remote"
	"fdep/internal/target"
)

// Manager runs database operations for one target on one host.
type Manager struct {
	Session *remote.Session
	Console *console.Console
	Target  *target.Target
	Now     func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Backup dumps the database into data/backup. A failed dump prints the
// credentials hint for the engine and returns ErrDumpFailed.
func (m *Manager) Backup(ctx context.Context, format Format) (Dump, error) {
	engine, err := ParseEngine(m.Target.DBEngine)
	if err != nil {
		return Dump{}, err
	}
	dump, err := PlanDump(engine, m.Target.ProjectName, m.Target.DBName, format, m.now())
	if err != nil {
		return Dump{}, err
	}

	m.Console.Info("Dumping database")

	if err := m.Session.Run(ctx, "mkdir -p "+BackupDir); err != nil {
		return Dump{}, fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}

	if err := m.Session.Run(ctx, dump.Command); err != nil {
		if hint, herr := CredentialsHint(engine, m.Target.DBName, m.Target.ProjectName); herr == nil {
			m.Console.Print("%s", hint)
		}
		return Dump{}, fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}

	if hint, err := dump.RestoreHint(); err == nil {
		m.Console.Success("%s", strings.TrimRight(hint, "\r\n"))
	}
	m.Console.Done()
	return dump, nil
}

// Restore loads a dump file (relative to deploy_path) after confirmation.
func (m *Manager) Restore(ctx context.Context, file string) error {
	engine, err := ParseEngine(m.Target.DBEngine)
	if err != nil {
		return err
	}
	cmd, err := RestoreCommand(engine, m.Target.DBName, file)
	if err != nil {
		return err
	}

	question := fmt.Sprintf("This will OVERWRITE database %s with %s on the server!", m.Target.DBName, file)
	if !m.Console.Confirm(question, false) {
		return fmt.Errorf("restore: %w", target.ErrCancelled)
	}

	m.Console.Info("Restoring database")
	if err := m.Session.Run(ctx, cmd); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	m.Console.Done()
	return nil
}

// DropSchema recreates the public schema after confirmation. The session
// must connect as root.
func (m *Manager) DropSchema(ctx context.Context) error {
	engine, err := ParseEngine(m.Target.DBEngine)
	if err != nil {
		return err
	}
	cmd, err := DropSchemaCommand(engine, m.Target.DBName)
	if err != nil {
		return err
	}

	if !m.Console.Confirm("This will DESTROY database schema on the server!", false) {
		return fmt.Errorf("drop schema: %w", target.ErrCancelled)
	}

	m.Console.Error("Dropping database schema")
	if err := m.Session.Run(ctx, "whoami"); err != nil {
		return err
	}
	if err := m.Session.Run(ctx, cmd); err != nil {
		return fmt.Errorf("drop schema failed: %w", err)
	}
	m.Console.Done()
	return nil
}
