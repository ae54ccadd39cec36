package repository

import (
	"context"
	"database/sql"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ClaimCopy atomically picks one AVAILABLE copy of the book and flips it to
// ON_LOAN. SKIP LOCKED makes concurrent checkouts claim distinct rows
// instead of queueing on the same one; which copy wins is arbitrary.
func (r *repository) ClaimCopy(ctx context.Context, bookID int64) (model.Copy, error) {
	q := `
	update copies
	set status = 'ON_LOAN', updated_at = now()
	where id = (
		select id from copies
		where book_id = $1 and status = 'AVAILABLE'
		limit 1
		for update skip locked
	)
	returning id, book_id, barcode, status, created_at, updated_at`

	var c model.Copy
	if err := sqlx.GetContext(ctx, r.q(ctx), &c, q, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Copy{}, errors.Wrapf(errs.ErrNoAvailableCopy, "book %d", bookID)
		}
		return model.Copy{}, errors.Wrap(err, "claim copy")
	}
	return c, nil
}

// ReleaseCopy flips an ON_LOAN copy back to AVAILABLE. The status predicate
// makes the transition compare-and-set: a copy in any other state is
// rejected, never overwritten.
func (r *repository) ReleaseCopy(ctx context.Context, copyID int64) error {
	q := `
	update copies
	set status = 'AVAILABLE', updated_at = now()
	where id = $1 and status = 'ON_LOAN'`

	res, err := r.q(ctx).ExecContext(ctx, q, copyID)
	if err != nil {
		return errors.Wrap(err, "release copy")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var status model.CopyStatus
		err := sqlx.GetContext(ctx, r.q(ctx), &status, `select status from copies where id = $1`, copyID)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(errs.ErrNotFound, "copy %d", copyID)
		}
		if err != nil {
			return errors.Wrap(err, "release copy status")
		}
		return errors.Wrapf(errs.ErrInvalidStateTransition, "copy %d is %s, not ON_LOAN", copyID, status)
	}
	return nil
}
