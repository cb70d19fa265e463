// Package http exposes the booking service over a JSON HTTP API.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/services/booking/app"
	"github.com/luminastudio/booking/internal/services/booking/authz"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
	"github.com/luminastudio/booking/internal/services/booking/storage"
)

// Handler serves the booking HTTP API.
type Handler struct {
	svc *app.Service
}

// NewHandler builds the API handler around the application service.
func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// NewServer assembles an echo server with all booking routes, the actor auth
// middleware on the API group, and the operational endpoints.
func NewServer(svc *app.Service, verifier authz.VerifierConfig, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	h := NewHandler(svc)
	api := e.Group("/v1", ActorAuth(verifier))
	h.Register(api)
	return e
}

// Register mounts the booking routes on a router group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/sessions", h.createSession)
	g.GET("/sessions", h.listSessions)
	g.GET("/sessions/:id", h.getSession)
	g.POST("/sessions/:id/transitions", h.attemptTransition)
	g.GET("/sessions/:id/history", h.listHistory)
	g.POST("/sessions/:id/payments", h.recordPayment)
	g.GET("/sessions/:id/payments", h.listPayments)
}

func (h *Handler) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.New(apperrors.CodeValidation, "malformed request body"))
	}

	typ, err := session.ParseType(req.Type)
	if err != nil {
		return writeError(c, err)
	}

	created, err := h.svc.CreateSession(c.Request().Context(), session.CreateSessionInput{
		ClientID:             req.ClientID,
		Type:                 typ,
		SessionDate:          req.SessionDate,
		DepositPercentage:    req.DepositPercentage,
		EstimatedEditingDays: req.EstimatedEditingDays,
		RoomID:               req.RoomID,
		LineItems:            toLineItems(req.LineItems),
		Photographers:        toAssignments(req.Photographers),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionPayload(created))
}

func (h *Handler) getSession(c echo.Context) error {
	loaded, err := h.svc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionPayload(loaded))
}

func (h *Handler) listSessions(c echo.Context) error {
	filter := storage.ListFilter{
		ClientID:  c.QueryParam("client_id"),
		PageToken: c.QueryParam("page_token"),
	}
	if label := c.QueryParam("status"); label != "" {
		status, err := session.ParseStatus(label)
		if err != nil {
			return writeError(c, err)
		}
		filter.Status = status
	}
	if size := c.QueryParam("page_size"); size != "" {
		if err := echo.QueryParamsBinder(c).Int("page_size", &filter.PageSize).BindError(); err != nil {
			return writeError(c, apperrors.New(apperrors.CodeValidation, "page_size must be an integer"))
		}
	}

	page, err := h.svc.ListSessions(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	payload := sessionListPayload{NextPageToken: page.NextPageToken}
	for _, s := range page.Sessions {
		payload.Sessions = append(payload.Sessions, toSessionPayload(s))
	}
	return c.JSON(http.StatusOK, payload)
}

func (h *Handler) attemptTransition(c echo.Context) error {
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.New(apperrors.CodeValidation, "malformed request body"))
	}

	to, err := session.ParseStatus(req.To)
	if err != nil {
		return writeError(c, err)
	}

	result, err := h.svc.AttemptTransition(c.Request().Context(), c.Param("id"), session.AttemptInput{
		To:            to,
		Actor:         actorFrom(c),
		Reason:        req.Reason,
		Notes:         req.Notes,
		RoomID:        req.RoomID,
		Photographers: toAssignments(req.Photographers),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, transitionResponse{
		Session:              toSessionPayload(result.Session),
		EmittedNotifications: toIntentPayloads(result.Intents),
	})
}

func (h *Handler) recordPayment(c echo.Context) error {
	var req recordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.New(apperrors.CodeValidation, "malformed request body"))
	}

	kind, err := session.ParsePaymentKind(req.Kind)
	if err != nil {
		return writeError(c, err)
	}

	committed, payment, err := h.svc.RecordPayment(c.Request().Context(), c.Param("id"), session.RecordPaymentInput{
		Kind:      kind,
		Amount:    req.Amount,
		Method:    req.Method,
		PaidAt:    req.PaidAt,
		Reference: req.Reference,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"payment": toPaymentPayload(payment),
		"session": toSessionPayload(committed),
	})
}

func (h *Handler) listPayments(c echo.Context) error {
	payments, err := h.svc.ListPayments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	payloads := make([]paymentPayload, 0, len(payments))
	for _, p := range payments {
		payloads = append(payloads, toPaymentPayload(p))
	}
	return c.JSON(http.StatusOK, map[string][]paymentPayload{"payments": payloads})
}

func (h *Handler) listHistory(c echo.Context) error {
	entries, err := h.svc.ListHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	payloads := make([]historyPayload, 0, len(entries))
	for _, e := range entries {
		payloads = append(payloads, toHistoryPayload(e))
	}
	return c.JSON(http.StatusOK, map[string][]historyPayload{"history": payloads})
}
