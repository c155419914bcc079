package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
)

type expiryStore interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type ListingExpiryJobParams struct {
	Logger  *logger.Logger
	Store   expiryStore
	Metrics *metrics.Marketplace
}

// NewListingExpiryJob persists the expired status for active listings past their expiry.
// Reads already treat such rows as expired; the sweep keeps stored status and status
// filters in line without waiting for a read.
func NewListingExpiryJob(params ListingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("listing store required")
	}
	return &listingExpiryJob{
		logg:    params.Logger,
		store:   params.Store,
		metrics: params.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

type listingExpiryJob struct {
	logg    *logger.Logger
	store   expiryStore
	metrics *metrics.Marketplace
	now     func() time.Time
}

func (j *listingExpiryJob) Name() string { return "listing-expiry" }

func (j *listingExpiryJob) Run(ctx context.Context) error {
	expired, err := j.store.ExpireDue(ctx, j.now())
	if err != nil {
		return fmt.Errorf("expire listings: %w", err)
	}
	j.metrics.AddListingsExpired(expired)
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "listing.expired")
	}
	return nil
}
