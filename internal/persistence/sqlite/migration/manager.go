package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager brings a database up to the latest migration.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
}

// NewManager wires a scanner and an executor. A nil logger falls back to slog.Default.
func NewManager(scanner *Scanner, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order. Each migration runs in
// its own transaction; the first failure stops the run.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.Debug("schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.Info("applying migrations", "current_version", status.CurrentVersion, "pending", len(status.Pending))
	for i, mig := range status.Pending {
		m.logger.Info("executing migration",
			"version", mig.Version,
			"description", mig.Description,
			"step", fmt.Sprintf("%d/%d", i+1, len(status.Pending)),
		)
		if err := m.executor.Apply(ctx, mig); err != nil {
			m.logger.Error("migration failed", "version", mig.Version, "file", mig.FilePath, "error", err)
			return err
		}
	}

	m.logger.Info("migrations complete", "applied", len(status.Pending), "duration", time.Since(started))
	return nil
}

// Status compares the files with the schema_migrations table.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, am := range applied {
		appliedByVersion[versionNumber(am.Version)] = am
		status.CurrentVersion = am.Version
	}

	for _, mig := range available {
		am, ok := appliedByVersion[versionNumber(mig.Version)]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if am.Checksum != "" && am.Checksum != mig.Checksum {
			return Status{}, newMigrationError(mig.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}

// validateSequence rejects gaps in the file versions and applied versions whose file is gone.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, mig := range available {
		n := versionNumber(mig.Version)
		known[n] = true
		if i > 0 && n != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
	}
	for _, am := range applied {
		if !known[versionNumber(am.Version)] {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, am.Version)
		}
	}
	return nil
}
