package query

import (
	"context"

	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mopentelemetry"
)

// GetBalance returns the balance of one (account, currency) pair. With
// snapshot reads enabled the cache is consulted first; any miss or cache
// error falls back to the authoritative store.
func (uc *UseCase) GetBalance(ctx context.Context, accountID, currency string) (*mmodel.Balance, error) {
	logger := pkg.NewLoggerFromContext(ctx)
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "query.get_balance")
	defer span.End()

	if uc.SnapshotReadEnabled {
		cached, err := uc.SnapshotRepo.Get(ctx, accountID, currency)
		if err != nil {
			logger.Warnf("Snapshot read failed for %s/%s, falling back to store: %v", accountID, currency, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	found, err := uc.BalanceRepo.Find(ctx, accountID, currency)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to find balance", err)

		return nil, err
	}

	return found, nil
}

// GetAllBalances returns every currency balance held by one account, straight
// from the authoritative store.
func (uc *UseCase) GetAllBalances(ctx context.Context, accountID string) ([]*mmodel.Balance, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "query.get_all_balances")
	defer span.End()

	balances, err := uc.BalanceRepo.FindAllByAccount(ctx, accountID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to find balances", err)

		return nil, err
	}

	return balances, nil
}
