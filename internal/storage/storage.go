package storage

import (
	"context"

	"vaultScope/internal/model"
)

// Journal is a sink for transaction outcomes.
type Journal interface {
	RecordOutcome(ctx context.Context, outcome model.TransactionOutcome) error
}

// Multi fans an outcome out to every journal, returning the first error.
type Multi []Journal

func (m Multi) RecordOutcome(ctx context.Context, outcome model.TransactionOutcome) error {
	var first error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.RecordOutcome(ctx, outcome); err != nil && first == nil {
			first = err
		}
	}
	return first
}
