package strategy

import "context"

// Noop never trades. Baseline for engine tests and dry runs.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Invoke(ctx context.Context, snap Snapshot) (*Decision, error) {
	return nil, nil
}
