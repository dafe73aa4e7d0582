package charges

import (
	"context"
	"log"
	"time"

	"github.com/halcyonpay/charge-connector/internal/infrastructure/gateway"
	"github.com/halcyonpay/charge-connector/internal/infrastructure/gorm/repositories"
	"github.com/halcyonpay/charge-connector/internal/utils/config"
	"gorm.io/gorm"
)

type Container struct {
	Service   *Service
	Processor *CaptureProcessor
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	chargeRepo := repositories.NewChargeRepo(db)
	queueRepo := repositories.NewCaptureQueueRepo(db)
	accountRepo := repositories.NewGatewayAccountRepo(db)
	registry := gateway.NewRegistry(cfg.GatewayTimeout)

	service := NewService(chargeRepo, queueRepo, accountRepo, registry, Options{
		AuthWorkerPool:    cfg.AuthWorkerPool,
		AuthSyncTimeout:   cfg.AuthSyncTimeout,
		AuthAsyncTimeout:  cfg.AuthAsyncTimeout,
		ExpiryThreshold:   cfg.ExpiryThreshold,
		DelayedCaptureAge: cfg.DelayedCaptureAge,
	})

	processor := NewCaptureProcessor(service, queueRepo, CaptureProcessorOptions{
		Workers:      cfg.CaptureWorkers,
		PollInterval: cfg.CapturePollInterval,
		Lease:        cfg.CaptureLease,
		RetryBackoff: cfg.CaptureRetryBackoff,
		MaxRetries:   cfg.CaptureMaxRetries,
	})

	go startSweepLoop(service, cfg.SweepInterval)

	return &Container{
		Service:   service,
		Processor: processor,
	}
}

func startSweepLoop(service *Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		result, err := service.SweepExpired(context.Background())
		if err != nil {
			log.Printf("expiry sweep error: %v", err)
			continue
		}
		if result.Success > 0 || result.Failed > 0 {
			log.Printf("expiry sweep: %d expired, %d failed", result.Success, result.Failed)
		}
	}
}
