package service

import (
	"testing"
	"time"

	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPenaltyCalculator_Assess(t *testing.T) {
	t.Parallel()

	due := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loan := model.Loan{
		ID:       7,
		MemberID: 3,
		DueDate:  due,
	}

	var tests = []struct {
		name       string
		returnedAt time.Time
		wantCharge bool
		wantAmount float64
		wantReason string
	}{
		{
			name:       "before due date",
			returnedAt: due.Add(-time.Hour),
			wantCharge: false,
		},
		{
			name:       "exactly on due date",
			returnedAt: due,
			wantCharge: false,
		},
		{
			name:       "one second late charges one day",
			returnedAt: due.Add(time.Second),
			wantCharge: true,
			wantAmount: 100,
			wantReason: "Overdue by 1 days",
		},
		{
			name:       "partial fifth day rounds up",
			returnedAt: due.Add(4*24*time.Hour + time.Hour),
			wantCharge: true,
			wantAmount: 500,
			wantReason: "Overdue by 5 days",
		},
		{
			name:       "five whole days",
			returnedAt: due.Add(5 * 24 * time.Hour),
			wantCharge: true,
			wantAmount: 500,
			wantReason: "Overdue by 5 days",
		},
	}

	calc := NewPenaltyCalculator(100)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			penalty, charged := calc.Assess(loan, tt.returnedAt)
			require.Equal(t, tt.wantCharge, charged)
			if !tt.wantCharge {
				return
			}
			require.Equal(t, tt.wantAmount, penalty.Amount)
			require.Equal(t, tt.wantReason, penalty.Reason)
			require.Equal(t, loan.MemberID, penalty.MemberID)
			require.True(t, penalty.LoanID.Valid)
			require.Equal(t, loan.ID, penalty.LoanID.Int64)
		})
	}
}
