package invoicing

import (
	"context"
	"fmt"

	"github.com/retailpos/pos-backend/internal/platform/db"
	"github.com/retailpos/pos-backend/internal/shared"
)

// ErrUnknownSeries is returned when no sequence row exists for a series.
var ErrUnknownSeries = fmt.Errorf("%w: invoice series", shared.ErrNotFound)

// NextNumber locks the series row and advances it by one. The increment is
// part of the caller's transaction and disappears with it on rollback.
func (r *txRepository) NextNumber(ctx context.Context, series string) (int64, error) {
	var last int64
	err := r.tx.QueryRow(ctx, `SELECT last_number FROM invoice_sequences WHERE series = $1 FOR UPDATE`, series).Scan(&last)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, fmt.Errorf("%w %q", ErrUnknownSeries, series)
		}
		return 0, fmt.Errorf("invoicing: lock sequence: %w", err)
	}
	next := last + 1
	if _, err := r.tx.Exec(ctx, `UPDATE invoice_sequences SET last_number = $2 WHERE series = $1`, series, next); err != nil {
		return 0, fmt.Errorf("invoicing: advance sequence: %w", err)
	}
	return next, nil
}
