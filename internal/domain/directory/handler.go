package directory

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/smartcare/clinic/internal/platform/auth"
	"github.com/smartcare/clinic/pkg/pagination"
)

// Handler exposes the user registry over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/users/:id", h.GetUser)
	g.GET("/staff", h.ListStaff)
	g.POST("/users", h.CreateUser, auth.RequireRole(auth.RoleReceptionist))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	u, err := h.svc.GetUser(c.Request().Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListStaff(c echo.Context) error {
	p := pagination.FromContext(c)

	var (
		users []*User
		total int
		err   error
	)
	if role := c.QueryParam("role"); role != "" {
		users, total, err = h.svc.ListByRole(c.Request().Context(), Role(role), p.Limit, p.Offset)
	} else {
		users, total, err = h.svc.ListStaff(c.Request().Context(), p.Limit, p.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p.Limit, p.Offset))
}

type createUserRequest struct {
	FullName        string  `json:"full_name"`
	Email           string  `json:"email"`
	Role            string  `json:"role"`
	PatientCategory *string `json:"patient_category"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	u := &User{
		FullName: req.FullName,
		Email:    req.Email,
		Role:     Role(req.Role),
	}
	if req.PatientCategory != nil {
		cat := PatientCategory(*req.PatientCategory)
		u.PatientCategory = &cat
	}

	if err := h.svc.CreateUser(c.Request().Context(), u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}
