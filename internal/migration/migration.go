package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	profiledomain "github.com/smallbiznis/metalid/internal/profile/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{
		&memberdomain.Member{},
		&invitedomain.InviteToken{},
		&profiledomain.Profile{},
		&profiledomain.Link{},
		&identitydomain.Identity{},
		&identitydomain.Session{},
		&identitydomain.Confirmation{},
		&auditdomain.AuditLog{},
	}
}

// Run applies the embedded SQL migrations on postgres. sqlite and mysql are
// development targets and are brought up with AutoMigrate instead.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
