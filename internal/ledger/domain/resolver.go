package domain

import (
	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
)

// Resolve picks the funding source for a debit of the given cost against a
// locked snapshot. An active subscription always wins and costs nothing
// from the counters; otherwise trial credits are consumed before purchased
// tokens. Pools are never split across a single debit.
func Resolve(snap *balancedomain.Snapshot, cost int64) (FundingSource, error) {
	if snap.SubscriptionStatus == balancedomain.SubscriptionActive {
		return SourceSubscription, nil
	}
	if snap.TrialRemaining >= cost {
		return SourceTrial, nil
	}
	if snap.TokenBalance >= cost {
		return SourceToken, nil
	}
	return "", ErrInsufficientFunds
}
