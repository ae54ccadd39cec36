package repository

import (
	"context"

	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

func (r *repository) CreatePenalty(ctx context.Context, penalty model.Penalty) (model.Penalty, error) {
	query, args, err := qb.Insert(penaltiesTableName).
		Columns("member_id", "loan_id", "amount", "reason").
		Values(penalty.MemberID, penalty.LoanID, penalty.Amount, penalty.Reason).
		Suffix("returning id, member_id, loan_id, amount, reason, resolved, resolved_at, created_at").
		ToSql()
	if err != nil {
		return model.Penalty{}, err
	}

	var p model.Penalty
	if err := sqlx.GetContext(ctx, r.q(ctx), &p, query, args...); err != nil {
		return model.Penalty{}, errors.Wrap(err, "create penalty")
	}
	return p, nil
}

func (r *repository) ListPenalties(ctx context.Context, memberID int64) ([]model.Penalty, error) {
	query, args, err := qb.Select("id", "member_id", "loan_id", "amount", "reason", "resolved", "resolved_at", "created_at").
		From(penaltiesTableName).
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	var items []model.Penalty
	if err := sqlx.SelectContext(ctx, r.q(ctx), &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "list penalties")
	}
	return items, nil
}
