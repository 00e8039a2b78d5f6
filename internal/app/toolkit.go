package app

import (
	"context"
	"fmt"

	"github.com/yungbote/coursehub-backend/internal/data/db"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/realtime"
)

// Toolkit is the service layer without HTTP, for operator commands. It shares locks and the
// realtime bus with running servers when REDIS_ADDR is set.
type Toolkit struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
}

func OpenToolkit(ctx context.Context, configPath string) (*Toolkit, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	theDB := clients.DB.DB()
	reposet := wireRepos(theDB, log)
	return &Toolkit{
		Log:      log,
		Cfg:      cfg,
		Clients:  clients,
		Repos:    reposet,
		Services: wireServices(theDB, log, cfg, clients, reposet, realtime.NewHub(log), nil),
	}, nil
}

func (t *Toolkit) Migrate() error {
	return db.AutoMigrateAll(t.Clients.DB.DB())
}

func (t *Toolkit) Close() {
	if t == nil {
		return
	}
	if t.Services.Playback != nil {
		t.Services.Playback.Shutdown()
	}
	t.Clients.Close()
	t.Log.Sync()
}
