package main

import (
	"context"
	"log"
	"os"

	"github.com/halcyonpay/charge-connector/internal/application/charges"
	gormdb "github.com/halcyonpay/charge-connector/internal/infrastructure/gorm"
	echoserver "github.com/halcyonpay/charge-connector/internal/presentation/echo"
	"github.com/halcyonpay/charge-connector/internal/utils/config"
)

func main() {
	cfg := config.Load()

	db, err := gormdb.NewConnection(cfg)
	if err != nil {
		log.Printf("failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := gormdb.RunMigrations(db); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	container := charges.NewContainer(db, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Processor.Start(ctx)

	server := echoserver.NewServer(cfg)
	echoserver.ConfigureRoutes(server.Echo(), container.Service, db)

	errC := server.Start()
	if err := <-errC; err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}

	cancel()
	container.Processor.Wait()
}
