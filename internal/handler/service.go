package handler

import (
	"context"

	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CirculationService interface {
	Checkout(ctx context.Context, bookID, memberID int64) (model.CheckoutResponse, error)
	Return(ctx context.Context, bookID, memberID int64) (model.ReturnResponse, error)
	Reserve(ctx context.Context, bookID, memberID int64) (model.ReserveResponse, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.CancelReservationResponse, error)
	ListLoans(ctx context.Context, memberID int64) ([]model.Loan, error)
	ListReservations(ctx context.Context, memberID int64) ([]model.Reservation, error)
	ListPenalties(ctx context.Context, memberID int64) ([]model.Penalty, error)
}

var _ CirculationService = (*service.Service)(nil)
