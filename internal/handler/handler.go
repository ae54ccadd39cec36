package handler

import (
	"net/http"
	"strconv"

	"github.com/askhatbv/circulation-service/internal/errs"
	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Handler struct {
	circulationSvc CirculationService
	log            *zap.Logger
}

func New(circulationSvc CirculationService, log *zap.Logger) *Handler {
	return &Handler{
		circulationSvc: circulationSvc,
		log:            log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log)),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.POST("/loans", h.Checkout)
	api.POST("/loans/return", h.Return)
	api.GET("/loans", h.ListLoans)
	api.POST("/reservations", h.Reserve)
	api.POST("/reservations/:reservationUid/cancel", h.CancelReservation)
	api.GET("/reservations", h.ListReservations)
	api.GET("/penalties", h.ListPenalties)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Checkout(c echo.Context) error {
	var req model.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	resp, err := h.circulationSvc.Checkout(c.Request().Context(), req.BookID, req.MemberID)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Return(c echo.Context) error {
	var req model.ReturnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	resp, err := h.circulationSvc.Return(c.Request().Context(), req.BookID, req.MemberID)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Reserve(c echo.Context) error {
	var req model.ReserveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	resp, err := h.circulationSvc.Reserve(c.Request().Context(), req.BookID, req.MemberID)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	reservationUid := c.Param("reservationUid")
	if reservationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}

	resp, err := h.circulationSvc.CancelReservation(c.Request().Context(), reservationUid)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListLoans(c echo.Context) error {
	memberID, err := memberIDParam(c)
	if err != nil {
		return err
	}
	loans, err := h.circulationSvc.ListLoans(c.Request().Context(), memberID)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) ListReservations(c echo.Context) error {
	memberID, err := memberIDParam(c)
	if err != nil {
		return err
	}
	items, err := h.circulationSvc.ListReservations(c.Request().Context(), memberID)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPenalties(c echo.Context) error {
	memberID, err := memberIDParam(c)
	if err != nil {
		return err
	}
	items, err := h.circulationSvc.ListPenalties(c.Request().Context(), memberID)
	if err != nil {
		return businessError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func memberIDParam(c echo.Context) (int64, error) {
	raw := c.QueryParam("memberId")
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "memberId is empty")
	}
	memberID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "memberId must be an integer")
	}
	return memberID, nil
}

// businessError maps the circulation error taxonomy onto HTTP statuses.
// Every kind is a normal business rejection; only unknown errors are 500s.
func businessError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrInvalidStateTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrNoAvailableCopy),
		errors.Is(err, errs.ErrQuotaExceeded),
		errors.Is(err, errs.ErrDuplicateReservation),
		errors.Is(err, errs.ErrNoCapacityForReservation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
