package cron

import (
	"context"
	"fmt"
	"time"
)

const (
	// reconcileMinAge keeps freshly created purchases out of the sweep; the
	// webhook usually lands within seconds.
	reconcileMinAge = time.Hour
	// reconcileExpireAfter is how long a pending purchase may linger before
	// it is cancelled.
	reconcileExpireAfter = 24 * time.Hour

	jobTimeout = 10 * time.Minute
)

// ReconcilePendingPurchases re-queries the provider for pending purchases
// whose webhook never arrived: paid ones complete, abandoned ones cancel.
func (m *CronManager) ReconcilePendingPurchases() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	completed, cancelled, err := m.purchases.ReconcileStalePending(ctx, reconcileMinAge, reconcileExpireAfter)
	if err != nil {
		m.logJobError("reconcile_pending_purchases", err)
		return
	}
	m.logJobComplete("reconcile_pending_purchases",
		fmt.Sprintf("completed %d, cancelled %d stale purchases", completed, cancelled))
}

// CleanupTokenBlacklist drops blacklist entries whose tokens have expired on
// their own.
func (m *CronManager) CleanupTokenBlacklist() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := m.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		m.logJobError("cleanup_token_blacklist", err)
		return
	}
	m.logJobComplete("cleanup_token_blacklist",
		fmt.Sprintf("removed %d expired tokens", removed))
}
