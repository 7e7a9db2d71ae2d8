package types

import (
	"context"

	"go.uber.org/zap"
)

// TwoPhase is a multi-step operation split into an explicit mandatory
// phase and an explicit best-effort phase. A mandatory failure aborts the
// whole operation and is returned to the caller; a best-effort failure is
// logged and swallowed, and the operation still counts as a success.
type TwoPhase struct {
	Name       string
	Mandatory  func(ctx context.Context) error
	BestEffort func(ctx context.Context) error
}

func (op TwoPhase) Run(ctx context.Context, logger *zap.SugaredLogger) error {
	if err := op.Mandatory(ctx); err != nil {
		return err
	}
	if op.BestEffort != nil {
		if err := op.BestEffort(ctx); err != nil {
			logger.Warnw("best-effort phase failed", "operation", op.Name, zap.Error(err))
		}
	}
	return nil
}
