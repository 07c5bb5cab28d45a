package main

import (
	"errors"
	"flag"

	"coupon_subscription/internal/pkg/config"
	"coupon_subscription/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	source := flag.String("source", "file://migrations", "migration source URL")
	down := flag.Bool("down", false, "roll back all migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log.Named("migrate")

	m, err := migrate.New(*source, cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to open migrations", zap.Error(err))
	}
	defer m.Close()

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}

	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		// 上次迁移中断，回退到失败前的版本后重试
		log.Warn("database is dirty, forcing previous version", zap.Int("version", dirty.Version))
		if err := m.Force(dirty.Version - 1); err != nil {
			log.Fatal("failed to force version", zap.Error(err))
		}
		if *down {
			err = m.Down()
		} else {
			err = m.Up()
		}
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal("migration failed", zap.Error(err))
	}

	version, _, _ := m.Version()
	log.Info("migration successful", zap.Uint("version", version))
}
