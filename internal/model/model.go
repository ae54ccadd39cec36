package model

import (
	"database/sql"
	"time"
)

type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyOnLoan    CopyStatus = "ON_LOAN"
	CopyReserved  CopyStatus = "RESERVED"
	CopyLost      CopyStatus = "LOST"
)

type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanReturned LoanStatus = "RETURNED"
	LoanOverdue  LoanStatus = "OVERDUE"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

type Copy struct {
	ID        int64      `json:"id" db:"id"`
	BookID    int64      `json:"bookId" db:"book_id"`
	Barcode   string     `json:"barcode" db:"barcode"`
	Status    CopyStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"-" db:"created_at"`
	UpdatedAt time.Time  `json:"-" db:"updated_at"`
}

type Member struct {
	ID             int64     `json:"id" db:"id"`
	LibraryID      string    `json:"libraryId" db:"library_id"`
	MaxActiveLoans int       `json:"maxActiveLoans" db:"max_active_loans"`
	CreatedAt      time.Time `json:"-" db:"created_at"`
}

type Loan struct {
	ID         int64      `json:"-" db:"id"`
	LoanUid    string     `json:"loanUid" db:"loan_uid"`
	CopyID     int64      `json:"copyId" db:"copy_id"`
	MemberID   int64      `json:"memberId" db:"member_id"`
	LoanDate   time.Time  `json:"loanDate" db:"loan_date"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"-" db:"created_at"`
	UpdatedAt  time.Time  `json:"-" db:"updated_at"`
}

type Reservation struct {
	ID             int64             `json:"-" db:"id"`
	ReservationUid string            `json:"reservationUid" db:"reservation_uid"`
	BookID         int64             `json:"bookId" db:"book_id"`
	MemberID       int64             `json:"memberId" db:"member_id"`
	ReservedAt     time.Time         `json:"reservedAt" db:"reserved_at"`
	ExpiresAt      time.Time         `json:"expiresAt" db:"expires_at"`
	Status         ReservationStatus `json:"status" db:"status"`
}

type Penalty struct {
	ID         int64         `json:"id" db:"id"`
	MemberID   int64         `json:"memberId" db:"member_id"`
	LoanID     sql.NullInt64 `json:"-" db:"loan_id"`
	Amount     float64       `json:"amount" db:"amount"`
	Reason     string        `json:"reason" db:"reason"`
	Resolved   bool          `json:"resolved" db:"resolved"`
	ResolvedAt sql.NullTime  `json:"-" db:"resolved_at"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
}

type CheckoutRequest struct {
	BookID   int64 `json:"bookId" validate:"required,gt=0"`
	MemberID int64 `json:"memberId" validate:"required,gt=0"`
}

type CheckoutResponse struct {
	LoanUid              string    `json:"loanUid"`
	DueDate              time.Time `json:"dueDate"`
	ReservationFulfilled bool      `json:"reservationFulfilled"`
}

type ReturnRequest struct {
	BookID   int64 `json:"bookId" validate:"required,gt=0"`
	MemberID int64 `json:"memberId" validate:"required,gt=0"`
}

type PenaltyInfo struct {
	PenaltyID int64   `json:"penaltyId"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason"`
}

type ReturnResponse struct {
	LoanUid string       `json:"loanUid"`
	Penalty *PenaltyInfo `json:"penalty,omitempty"`
}

type ReserveRequest struct {
	BookID   int64 `json:"bookId" validate:"required,gt=0"`
	MemberID int64 `json:"memberId" validate:"required,gt=0"`
}

type ReserveResponse struct {
	ReservationUid string    `json:"reservationUid"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type CancelReservationResponse struct {
	ReservationUid string `json:"reservationUid"`
}
