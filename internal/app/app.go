package app

import (
	"fmt"
	"log/slog"

	"github.com/taxdesk/taxdesk/internal/config"
	"github.com/taxdesk/taxdesk/internal/database"
	"github.com/taxdesk/taxdesk/internal/observability"
	"github.com/taxdesk/taxdesk/internal/repository"
	"github.com/taxdesk/taxdesk/internal/service"
)

// App is the composition root. The GUI shell and the authctl CLI both embed
// one and call the service directly, in process.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Auth   *service.AuthService
}

// New wires config, stores, and the auth service. registry may be nil when
// no professional-registry connection is configured; professional login then
// reports the registry as unavailable.
func New(cfg *config.Config, registry service.ProfessionalRegistry) (*App, error) {
	logger := observability.InitLogger(cfg.LogLevel)

	creds, sessions, err := buildStores(cfg)
	if err != nil {
		return nil, err
	}

	auth := service.NewAuthService(cfg, creds, sessions, registry, logger)
	return &App{Config: cfg, Logger: logger, Auth: auth}, nil
}

func buildStores(cfg *config.Config) (repository.CredentialStore, repository.SessionStore, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := repository.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return repository.NewGormCredentialStore(db), repository.NewGormSessionStore(db), nil
	case "file":
		return repository.NewFileCredentialStore(cfg.AuthFile), repository.NewFileSessionStore(cfg.SessionsFile), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
