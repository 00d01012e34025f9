package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/repository"
	"github.com/storypilot/scheduler/internal/service"
)

type TokenRefreshJob struct {
	sa repository.SnapAccountRepository
	ac service.AccountService
}

func NewTokenRefreshJob(sa repository.SnapAccountRepository, ac service.AccountService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sa: sa,
		ac: ac,
	}
}

// RefreshTokens renews credentials about to expire so publish attempts never
// start with a stale token.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sa.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SnapAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ac.RefreshAccount(ctx, acc); err != nil {
				slog.Info(fmt.Sprintf("unable to refresh tokens for account %d", acc.ID))
			}
		}(acc)
	}

	wg.Wait()
}
