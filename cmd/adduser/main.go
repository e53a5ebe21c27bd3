package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/database"
	applogger "github.com/khalilhajj/PfeManagement/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("PFE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	cli := commandLine{
		userSvc: service.NewUserService(repository.NewRepository(db), logger),
		out:     os.Stdout,
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
