package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/medisoft/internal/cli"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/config"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/medisoft/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogBackend, "warn", os.Stderr)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	repos, err := repomanager.New(ctx, repomanager.Options{
		Driver:      cfg.StoreDriver,
		UsersFile:   cfg.UsersFile,
		DatabaseDSN: cfg.DatabaseDSN,
	}, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer repos.Close()

	auth := services.NewAuthService(repos.Users(),
		services.WithKDFParams(cfg.KDFParams()),
		services.WithLogger(logger),
	)

	cli.NewApp(auth, os.Stdin, os.Stdout).Run(ctx)

}
