package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/smartcare/clinic/internal/domain/billing"
	"github.com/smartcare/clinic/internal/domain/directory"
	"github.com/smartcare/clinic/internal/domain/scheduling"
	"github.com/smartcare/clinic/internal/platform/auth"
	"github.com/smartcare/clinic/internal/platform/calendar"
	"github.com/smartcare/clinic/pkg/pagination"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Handler exposes the booking and billing operations over HTTP.
type Handler struct {
	orch     *Orchestrator
	appts    *scheduling.Service
	invoices *billing.Service
}

func NewHandler(orch *Orchestrator, appts *scheduling.Service, invoices *billing.Service) *Handler {
	return &Handler{orch: orch, appts: appts, invoices: invoices}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments", h.Book)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/:id", h.GetAppointment)
	g.GET("/appointments/:id/history", h.AppointmentHistory)
	g.PUT("/appointments/:id/reschedule", h.Reschedule)
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.POST("/appointments/:id/complete", h.Complete, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.POST("/appointments/:id/forward", h.Forward, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	g.POST("/appointments/:id/sync", h.SyncCalendar, auth.RequireStaff())

	g.POST("/invoices", h.GenerateInvoice, auth.RequireRole(auth.RoleReceptionist))
	g.GET("/invoices", h.ListInvoices, auth.RequireStaff())
	g.GET("/invoices/:id", h.GetInvoice)
	g.PUT("/invoices/:id", h.UpdateInvoice, auth.RequireRole(auth.RoleReceptionist))
	g.PUT("/invoices/:id/status", h.UpdateInvoiceStatus, auth.RequireRole(auth.RoleReceptionist))

	g.GET("/fees", h.ListFees)
	g.POST("/fees", h.CreateFee, auth.RequireRole(auth.RoleAdmin))

	g.GET("/rates", h.ListRates, auth.RequireStaff())
	g.PUT("/rates/:key", h.SetRate, auth.RequireRole(auth.RoleAdmin))
}

// httpError maps domain sentinels to HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, scheduling.ErrAppointmentNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound),
		errors.Is(err, billing.ErrFeeNotFound),
		errors.Is(err, directory.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict),
		errors.Is(err, scheduling.ErrInvalidTransition),
		errors.Is(err, billing.ErrInvalidTransition),
		errors.Is(err, billing.ErrDuplicateInvoice):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, scheduling.ErrPastDate),
		errors.Is(err, scheduling.ErrMissingStaff),
		errors.Is(err, scheduling.ErrInvalidTimeRange),
		errors.Is(err, directory.ErrInvalidStaff),
		errors.Is(err, billing.ErrInvalidDuration),
		errors.Is(err, billing.ErrInvalidRate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, calendar.ErrExternal):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func actorFrom(c echo.Context) uuid.UUID {
	actor, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil
	}
	return actor
}

// parseSlot combines a date and a clock time into the stored date and
// timestamp pair.
func parseSlot(dateStr, timeStr string) (time.Time, time.Time, error) {
	date, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if timeStr == "" {
		return date, time.Time{}, nil
	}
	t, err := time.ParseInLocation(timeLayout, timeStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	at := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	return date, at, nil
}

type bookRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	NurseID   string `json:"nurse_id"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	book := BookRequest{
		PatientID: patientID,
		Type:      scheduling.AppointmentType(req.Type),
		Reason:    req.Reason,
	}
	if req.DoctorID != "" {
		id, err := uuid.Parse(req.DoctorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
		}
		book.DoctorID = &id
	}
	if req.NurseID != "" {
		id, err := uuid.Parse(req.NurseID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid nurse id")
		}
		book.NurseID = &id
	}

	date, start, err := parseSlot(req.Date, req.StartTime)
	if err != nil || start.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date or start_time")
	}
	book.Date = date
	book.StartTime = start

	if req.EndTime != "" {
		_, end, err := parseSlot(req.Date, req.EndTime)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_time")
		}
		book.EndTime = end
	}

	a, err := h.orch.Book(c.Request().Context(), book)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p := pagination.FromContext(c)
	ctx := c.Request().Context()

	var (
		appts []*scheduling.Appointment
		total int
		err   error
	)
	switch {
	case c.QueryParam("patient_id") != "":
		id, perr := uuid.Parse(c.QueryParam("patient_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		appts, total, err = h.appts.ListByPatient(ctx, id, p.Limit, p.Offset)
	case c.QueryParam("staff_id") != "":
		id, perr := uuid.Parse(c.QueryParam("staff_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
		}
		appts, total, err = h.appts.ListByStaff(ctx, id, p.Limit, p.Offset)
	case c.QueryParam("date") != "":
		date, perr := time.ParseInLocation(dateLayout, c.QueryParam("date"), time.UTC)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
		}
		appts, total, err = h.appts.ListByDate(ctx, date, p.Limit, p.Offset)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "one of patient_id, staff_id or date is required")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	a, err := h.appts.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AppointmentHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	recs, err := h.appts.History(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, recs)
}

type rescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	StaffID   string `json:"staff_id"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	date, start, err := parseSlot(req.Date, req.StartTime)
	if err != nil || start.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date or start_time")
	}
	var end time.Time
	if req.EndTime != "" {
		_, end, err = parseSlot(req.Date, req.EndTime)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_time")
		}
	}

	var staffID *uuid.UUID
	if req.StaffID != "" {
		sid, err := uuid.Parse(req.StaffID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
		}
		staffID = &sid
	}

	a, err := h.orch.Reschedule(c.Request().Context(), id, date, start, end, staffID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.orch.Cancel(c.Request().Context(), id, actorFrom(c), req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	res, err := h.orch.Complete(c.Request().Context(), id, actorFrom(c))
	if errors.Is(err, ErrInvoiceGeneration) {
		// The appointment is completed; report it with the invoicing
		// failure instead of hiding the committed transition.
		return c.JSON(http.StatusOK, map[string]interface{}{
			"appointment":   res.Appointment,
			"invoice_error": err.Error(),
		})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type forwardRequest struct {
	NewStaffID string `json:"new_staff_id"`
}

func (h *Handler) Forward(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req forwardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	staffID, err := uuid.Parse(req.NewStaffID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid staff id")
	}

	forwarded, err := h.orch.Forward(c.Request().Context(), id, staffID, actorFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, forwarded)
}

func (h *Handler) SyncCalendar(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	a, err := h.orch.SyncCalendar(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type generateInvoiceRequest struct {
	AppointmentID string `json:"appointment_id"`
	PatientType   string `json:"patient_type"`
}

func (h *Handler) GenerateInvoice(c echo.Context) error {
	var req generateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	apptID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var override *billing.PatientType
	if req.PatientType != "" {
		pt := billing.PatientType(req.PatientType)
		if !billing.ValidPatientType(pt) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient type")
		}
		override = &pt
	}

	inv, err := h.orch.GenerateInvoice(c.Request().Context(), apptID, override)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	p := pagination.FromContext(c)

	status := billing.PaymentStatus(c.QueryParam("status"))
	invs, total, err := h.invoices.List(c.Request().Context(), status, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invs, total, p.Limit, p.Offset))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}

	inv, err := h.invoices.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

type updateInvoiceRequest struct {
	ConsultationLength *int    `json:"consultation_length"`
	Rate               *string `json:"rate"`
}

func (h *Handler) UpdateInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}

	var req updateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var rate *decimal.Decimal
	if req.Rate != nil {
		d, err := decimal.NewFromString(*req.Rate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid rate")
		}
		rate = &d
	}

	inv, err := h.invoices.UpdateAmounts(c.Request().Context(), id, req.ConsultationLength, rate)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

type updateInvoiceStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateInvoiceStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}

	var req updateInvoiceStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inv, err := h.orch.UpdateInvoiceStatus(c.Request().Context(), id, billing.PaymentStatus(req.Status))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

type createFeeRequest struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	AppliesTo string `json:"applies_to"`
}

func (h *Handler) CreateFee(c echo.Context) error {
	var req createFeeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}

	f := &billing.Fee{
		Name:      req.Name,
		Amount:    amount,
		AppliesTo: billing.FeeScope(req.AppliesTo),
	}
	if err := h.invoices.CreateFee(c.Request().Context(), f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) ListFees(c echo.Context) error {
	fees, err := h.invoices.ListFees(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, fees)
}

func (h *Handler) ListRates(c echo.Context) error {
	rates, err := h.invoices.ListRates(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rates)
}

type setRateRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) SetRate(c echo.Context) error {
	var req setRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}

	rs, err := h.orch.SetRate(c.Request().Context(), billing.RateKey(c.Param("key")), amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rs)
}
