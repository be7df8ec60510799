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
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	chargedomain "github.com/smallbiznis/cobranca/internal/charge/domain"
	conversationdomain "github.com/smallbiznis/cobranca/internal/conversation/domain"
	customerdomain "github.com/smallbiznis/cobranca/internal/customer/domain"
	decisionlogdomain "github.com/smallbiznis/cobranca/internal/decisionlog/domain"
	dunningdomain "github.com/smallbiznis/cobranca/internal/dunning/domain"
	queuedomain "github.com/smallbiznis/cobranca/internal/messagequeue/domain"
	taskdomain "github.com/smallbiznis/cobranca/internal/task/domain"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded SQL migrations so the service is
// usable out of the box on a fresh postgres database.
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
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the sqlite and mysql development databases, where the
// postgres migration driver does not apply.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	return conn.AutoMigrate(
		&customerdomain.Customer{},
		&chargedomain.Charge{},
		&dunningdomain.Rule{},
		&dunningdomain.Step{},
		&dunningdomain.NotificationLog{},
		&conversationdomain.Conversation{},
		&conversationdomain.Message{},
		&queuedomain.Item{},
		&taskdomain.CollectionTask{},
		&decisionlogdomain.AgentDecisionLog{},
		&configdomain.AgentConfig{},
	)
}
