package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/askhatbv/circulation-service/config"
	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/internal/service"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mock_repository "github.com/askhatbv/circulation-service/internal/repository/mocks"
)

var (
	now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	circulationCfg = config.Circulation{
		LoanPeriod:       14 * 24 * time.Hour,
		ReservationTTL:   7 * 24 * time.Hour,
		DailyPenaltyRate: 100,
	}
)

func newService(t *testing.T) (*service.Service, *mock_repository.MockRepository) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	repo := mock_repository.NewMockRepository(c)
	svc := service.NewService(repo, circulationCfg, zap.NewExample().Named("test"),
		service.WithClock(func() time.Time { return now }))
	return svc, repo
}

func expectTx(repo *mock_repository.MockRepository) *gomock.Call {
	return repo.EXPECT().
		WithinTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
}

func TestService_Checkout(t *testing.T) {
	t.Parallel()

	member := model.Member{ID: 3, LibraryID: "LIB-0001", MaxActiveLoans: 1}
	claimed := model.Copy{ID: 11, BookID: 5, Barcode: "COPY-A1B2C3D4", Status: model.CopyOnLoan}
	dueDate := now.Add(14 * 24 * time.Hour)
	loan := model.Loan{
		ID:       21,
		LoanUid:  "5c1f2f6e-25c7-47b8-9e32-27d10f11d1ab",
		CopyID:   claimed.ID,
		MemberID: member.ID,
		LoanDate: now,
		DueDate:  dueDate,
		Status:   model.LoanActive,
	}

	var tests = []struct {
		name         string
		mockBehavior func(r *mock_repository.MockRepository)
		want         model.CheckoutResponse
		wantErr      error
	}{
		{
			name: "ok, due date 14 days out",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMemberForUpdate(gomock.Any(), int64(3)).Return(member, nil)
				r.EXPECT().ClaimCopy(gomock.Any(), int64(5)).Return(claimed, nil)
				r.EXPECT().CountActiveLoans(gomock.Any(), int64(3)).Return(0, nil)
				r.EXPECT().CreateLoan(gomock.Any(), int64(11), int64(3), now, dueDate).Return(loan, nil)
				r.EXPECT().FulfillReservation(gomock.Any(), int64(5), int64(3)).Return(false, nil)
			},
			want: model.CheckoutResponse{
				LoanUid:              loan.LoanUid,
				DueDate:              dueDate,
				ReservationFulfilled: false,
			},
		},
		{
			name: "ok, pending reservation fulfilled",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMemberForUpdate(gomock.Any(), int64(3)).Return(member, nil)
				r.EXPECT().ClaimCopy(gomock.Any(), int64(5)).Return(claimed, nil)
				r.EXPECT().CountActiveLoans(gomock.Any(), int64(3)).Return(0, nil)
				r.EXPECT().CreateLoan(gomock.Any(), int64(11), int64(3), now, dueDate).Return(loan, nil)
				r.EXPECT().FulfillReservation(gomock.Any(), int64(5), int64(3)).Return(true, nil)
			},
			want: model.CheckoutResponse{
				LoanUid:              loan.LoanUid,
				DueDate:              dueDate,
				ReservationFulfilled: true,
			},
		},
		{
			name: "err. book not found",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(false, nil)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "err. member not found",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMemberForUpdate(gomock.Any(), int64(3)).Return(model.Member{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "err. no available copy",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMemberForUpdate(gomock.Any(), int64(3)).Return(member, nil)
				r.EXPECT().ClaimCopy(gomock.Any(), int64(5)).Return(model.Copy{}, errs.ErrNoAvailableCopy)
			},
			wantErr: errs.ErrNoAvailableCopy,
		},
		{
			name: "err. quota exceeded, loan never inserted",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMemberForUpdate(gomock.Any(), int64(3)).Return(member, nil)
				r.EXPECT().ClaimCopy(gomock.Any(), int64(5)).Return(claimed, nil)
				r.EXPECT().CountActiveLoans(gomock.Any(), int64(3)).Return(1, nil)
			},
			wantErr: errs.ErrQuotaExceeded,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newService(t)
			tt.mockBehavior(repo)

			got, err := svc.Checkout(context.Background(), 5, 3)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_Return(t *testing.T) {
	t.Parallel()

	activeLoan := func(due time.Time) model.Loan {
		return model.Loan{
			ID:       21,
			LoanUid:  "5c1f2f6e-25c7-47b8-9e32-27d10f11d1ab",
			CopyID:   11,
			MemberID: 3,
			LoanDate: due.Add(-14 * 24 * time.Hour),
			DueDate:  due,
			Status:   model.LoanActive,
		}
	}

	var tests = []struct {
		name         string
		mockBehavior func(r *mock_repository.MockRepository)
		want         model.ReturnResponse
		wantErr      error
	}{
		{
			name: "ok, on time, no penalty",
			mockBehavior: func(r *mock_repository.MockRepository) {
				loan := activeLoan(now.Add(24 * time.Hour))
				expectTx(r)
				r.EXPECT().FindActiveLoan(gomock.Any(), int64(5), int64(3)).Return(loan, nil)
				r.EXPECT().CloseLoan(gomock.Any(), int64(21), now).Return(nil)
				r.EXPECT().ReleaseCopy(gomock.Any(), int64(11)).Return(nil)
			},
			want: model.ReturnResponse{LoanUid: "5c1f2f6e-25c7-47b8-9e32-27d10f11d1ab"},
		},
		{
			name: "ok, five days overdue charges five days",
			mockBehavior: func(r *mock_repository.MockRepository) {
				loan := activeLoan(now.Add(-5 * 24 * time.Hour))
				expectTx(r)
				r.EXPECT().FindActiveLoan(gomock.Any(), int64(5), int64(3)).Return(loan, nil)
				r.EXPECT().CloseLoan(gomock.Any(), int64(21), now).Return(nil)
				r.EXPECT().ReleaseCopy(gomock.Any(), int64(11)).Return(nil)
				r.EXPECT().CreatePenalty(gomock.Any(), model.Penalty{
					MemberID: 3,
					LoanID:   sql.NullInt64{Int64: 21, Valid: true},
					Amount:   500,
					Reason:   "Overdue by 5 days",
				}).Return(model.Penalty{
					ID:       31,
					MemberID: 3,
					LoanID:   sql.NullInt64{Int64: 21, Valid: true},
					Amount:   500,
					Reason:   "Overdue by 5 days",
				}, nil)
			},
			want: model.ReturnResponse{
				LoanUid: "5c1f2f6e-25c7-47b8-9e32-27d10f11d1ab",
				Penalty: &model.PenaltyInfo{
					PenaltyID: 31,
					Amount:    500,
					Reason:    "Overdue by 5 days",
				},
			},
		},
		{
			name: "err. no active loan",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().FindActiveLoan(gomock.Any(), int64(5), int64(3)).
					Return(model.Loan{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "err. duplicate active loans is an internal fault",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().FindActiveLoan(gomock.Any(), int64(5), int64(3)).
					Return(model.Loan{}, errs.ErrInconsistentState)
			},
			wantErr: errs.ErrInconsistentState,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newService(t)
			tt.mockBehavior(repo)

			got, err := svc.Return(context.Background(), 5, 3)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_Reserve(t *testing.T) {
	t.Parallel()

	member := model.Member{ID: 4, LibraryID: "LIB-0002", MaxActiveLoans: 5}
	expiresAt := now.Add(7 * 24 * time.Hour)
	created := model.Reservation{
		ID:             41,
		ReservationUid: "a4d9b019-4b43-4a1c-b08c-7dbd1f371a95",
		BookID:         5,
		MemberID:       4,
		ReservedAt:     now,
		ExpiresAt:      expiresAt,
		Status:         model.ReservationPending,
	}

	var tests = []struct {
		name         string
		mockBehavior func(r *mock_repository.MockRepository)
		want         model.ReserveResponse
		wantErr      error
	}{
		{
			name: "ok, headroom left",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMember(gomock.Any(), int64(4)).Return(member, nil)
				r.EXPECT().LockBook(gomock.Any(), int64(5)).Return(nil)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().HasPendingReservation(gomock.Any(), int64(5), int64(4)).Return(false, nil)
				r.EXPECT().TotalCopies(gomock.Any(), int64(5)).Return(2, nil)
				r.EXPECT().CountActiveLoansByBook(gomock.Any(), int64(5)).Return(1, nil)
				r.EXPECT().CountPendingReservations(gomock.Any(), int64(5)).Return(0, nil)
				r.EXPECT().CreateReservation(gomock.Any(), int64(5), int64(4), now, expiresAt).
					Return(created, nil)
			},
			want: model.ReserveResponse{
				ReservationUid: created.ReservationUid,
				ExpiresAt:      expiresAt,
			},
		},
		{
			name: "err. single copy on loan leaves no capacity",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMember(gomock.Any(), int64(4)).Return(member, nil)
				r.EXPECT().LockBook(gomock.Any(), int64(5)).Return(nil)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().HasPendingReservation(gomock.Any(), int64(5), int64(4)).Return(false, nil)
				r.EXPECT().TotalCopies(gomock.Any(), int64(5)).Return(1, nil)
				r.EXPECT().CountActiveLoansByBook(gomock.Any(), int64(5)).Return(1, nil)
				r.EXPECT().CountPendingReservations(gomock.Any(), int64(5)).Return(0, nil)
			},
			wantErr: errs.ErrNoCapacityForReservation,
		},
		{
			// The member's own PENDING reservation is the one filling the
			// book's headroom: the rejection must name the duplicate, not
			// the capacity formula.
			name: "err. repeat reserve of own pending reservation",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMember(gomock.Any(), int64(4)).Return(member, nil)
				r.EXPECT().LockBook(gomock.Any(), int64(5)).Return(nil)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().HasPendingReservation(gomock.Any(), int64(5), int64(4)).Return(true, nil)
			},
			wantErr: errs.ErrDuplicateReservation,
		},
		{
			name: "err. concurrent duplicate caught by unique index",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(true, nil)
				r.EXPECT().GetMember(gomock.Any(), int64(4)).Return(member, nil)
				r.EXPECT().LockBook(gomock.Any(), int64(5)).Return(nil)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().HasPendingReservation(gomock.Any(), int64(5), int64(4)).Return(false, nil)
				r.EXPECT().TotalCopies(gomock.Any(), int64(5)).Return(2, nil)
				r.EXPECT().CountActiveLoansByBook(gomock.Any(), int64(5)).Return(0, nil)
				r.EXPECT().CountPendingReservations(gomock.Any(), int64(5)).Return(0, nil)
				r.EXPECT().CreateReservation(gomock.Any(), int64(5), int64(4), now, expiresAt).
					Return(model.Reservation{}, errs.ErrDuplicateReservation)
			},
			wantErr: errs.ErrDuplicateReservation,
		},
		{
			name: "err. book not found",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().BookExists(gomock.Any(), int64(5)).Return(false, nil)
			},
			wantErr: errs.ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newService(t)
			tt.mockBehavior(repo)

			got, err := svc.Reserve(context.Background(), 5, 4)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_CancelReservation(t *testing.T) {
	t.Parallel()

	const uid = "a4d9b019-4b43-4a1c-b08c-7dbd1f371a95"

	var tests = []struct {
		name         string
		mockBehavior func(r *mock_repository.MockRepository)
		want         model.CancelReservationResponse
		wantErr      error
	}{
		{
			name: "ok, pending cancelled",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().CancelReservation(gomock.Any(), uid).Return(model.Reservation{
					ReservationUid: uid,
					Status:         model.ReservationCancelled,
				}, nil)
			},
			want: model.CancelReservationResponse{ReservationUid: uid},
		},
		{
			name: "err. second cancel is rejected, not silently accepted",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().CancelReservation(gomock.Any(), uid).
					Return(model.Reservation{}, errs.ErrInvalidStateTransition)
			},
			wantErr: errs.ErrInvalidStateTransition,
		},
		{
			name: "err. expired before cancel",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(1), nil)
				r.EXPECT().CancelReservation(gomock.Any(), uid).
					Return(model.Reservation{}, errs.ErrInvalidStateTransition)
			},
			wantErr: errs.ErrInvalidStateTransition,
		},
		{
			name: "err. unknown reservation",
			mockBehavior: func(r *mock_repository.MockRepository) {
				expectTx(r)
				r.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(0), nil)
				r.EXPECT().CancelReservation(gomock.Any(), uid).
					Return(model.Reservation{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newService(t)
			tt.mockBehavior(repo)

			got, err := svc.CancelReservation(context.Background(), uid)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// The expiry sweep must run before reservations are handed back, so a
// PENDING row past its expiry is never observed by a caller.
func TestService_ListReservationsSweepsFirst(t *testing.T) {
	t.Parallel()

	svc, repo := newService(t)
	member := model.Member{ID: 4, LibraryID: "LIB-0002", MaxActiveLoans: 5}
	expired := model.Reservation{
		ID:             41,
		ReservationUid: "a4d9b019-4b43-4a1c-b08c-7dbd1f371a95",
		BookID:         5,
		MemberID:       4,
		ReservedAt:     now.Add(-8 * 24 * time.Hour),
		ExpiresAt:      now.Add(-24 * time.Hour),
		Status:         model.ReservationExpired,
	}

	expectTx(repo)
	repo.EXPECT().GetMember(gomock.Any(), int64(4)).Return(member, nil)
	sweep := repo.EXPECT().SweepExpiredReservations(gomock.Any(), now).Return(int64(1), nil)
	repo.EXPECT().ListReservations(gomock.Any(), int64(4)).
		Return([]model.Reservation{expired}, nil).
		After(sweep)

	items, err := svc.ListReservations(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, model.ReservationExpired, items[0].Status)
}
