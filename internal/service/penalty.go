package service

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/askhatbv/circulation-service/internal/model"
)

// PenaltyCalculator computes the overdue fee on return. Flat per-day rate,
// no compounding, no cap.
type PenaltyCalculator struct {
	dailyRate float64
}

func NewPenaltyCalculator(dailyRate float64) *PenaltyCalculator {
	return &PenaltyCalculator{dailyRate: dailyRate}
}

// Assess reports the penalty for a loan returned at returnedAt, or false if
// the return is on time. Partial days round up, so the charge is at least
// one day the instant the due date is passed.
func (p *PenaltyCalculator) Assess(loan model.Loan, returnedAt time.Time) (model.Penalty, bool) {
	late := returnedAt.Sub(loan.DueDate)
	if late <= 0 {
		return model.Penalty{}, false
	}

	overdueDays := int(math.Ceil(late.Hours() / 24))
	if overdueDays < 1 {
		overdueDays = 1
	}

	return model.Penalty{
		MemberID: loan.MemberID,
		LoanID:   sql.NullInt64{Int64: loan.ID, Valid: true},
		Amount:   float64(overdueDays) * p.dailyRate,
		Reason:   fmt.Sprintf("Overdue by %d days", overdueDays),
	}, true
}
