package lookup

import (
	"context"
	"errors"

	"github.com/arkilian/rangelookup/internal/config"
	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/store"
	"github.com/arkilian/rangelookup/pkg/types"
)

// SessionFactory creates and closes scan sessions. *store.Factory implements it.
type SessionFactory interface {
	NewSession(ctx context.Context, table string, auths []string, threads int, queryID string) (store.Session, error)
	Close(s store.Session) error
}

var _ SessionFactory = (*store.Factory)(nil)

// openScan opens a session over boundary restricted to rng's field with plan
// installed, and starts iterating it under scanCtx. On error no session is
// left open.
func openScan(ctx, scanCtx context.Context, factory SessionFactory, cfg *config.LookupConfig, rng types.LiteralRange, boundary kv.Range, plan FilterPlan) (store.Session, kv.CellIterator, error) {
	sess, err := factory.NewSession(ctx, cfg.IndexTable, cfg.Authorizations, cfg.QueryThreads, cfg.QueryID)
	if err != nil {
		if errors.Is(err, store.ErrTableNotFound) {
			return nil, nil, lerrors.NewTableNotFoundError(cfg.IndexTable, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, lerrors.NewStoreError(lerrors.CodeUnexpected, "open scan session", err)
	}

	it, err := configureScan(scanCtx, sess, rng, boundary, plan)
	if err != nil {
		factory.Close(sess)
		return nil, nil, err
	}
	return sess, it, nil
}

func configureScan(ctx context.Context, sess store.Session, rng types.LiteralRange, boundary kv.Range, plan FilterPlan) (kv.CellIterator, error) {
	sess.SetRange(boundary)
	sess.FetchColumnFamily(rng.Field)
	for _, d := range plan.Descriptors {
		if err := sess.AddFilter(d); err != nil {
			return nil, lerrors.NewScanSetupError(rng, err)
		}
	}
	if plan.SessionBudget > 0 {
		sess.SetSessionTimeBudget(plan.SessionBudget)
	}

	it, err := sess.Iterate(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, store.ErrSessionClosed) {
			return nil, lerrors.NewStoreError(lerrors.CodeSessionClosed, "scan session closed before iterating", err)
		}
		return nil, lerrors.NewScanSetupError(rng, err)
	}
	return it, nil
}
