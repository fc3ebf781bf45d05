package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/dashboard"
	"github.com/Sunny-Hasho/Eventura-v1/notify"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/pitch"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

// Server wires the domain services onto echo routes.
type Server struct {
	Auth          *auth.Service
	Requests      *request.Service
	Pitches       *pitch.Service
	Payments      *payment.Service
	Notifications *notify.Service
	Dashboard     *dashboard.Hub
}

// Register mounts every route on e.
func (s *Server) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	e.GET("/requests", s.listOpenRequests)
	e.GET("/ws/dashboard", s.Dashboard.Serve)

	api := e.Group("", Authenticate(s.Auth))

	api.GET("/auth/me", s.me)

	api.POST("/requests", s.createRequest, RequireRoles(auth.RoleClient))
	api.GET("/requests/mine", s.listMyRequests, RequireRoles(auth.RoleClient))
	api.GET("/requests/:id", s.getRequest)
	api.GET("/requests/:id/pitches", s.listRequestPitches)
	api.GET("/requests/:id/payment", s.getRequestPayment)
	api.POST("/requests/:id/payment", s.createEscrow)

	api.POST("/pitches", s.createPitch, RequireRoles(auth.RoleProvider))
	api.GET("/pitches/mine", s.listMyPitches, RequireRoles(auth.RoleProvider))
	api.GET("/pitches/:id", s.getPitch)
	api.POST("/pitches/:id/accept", s.acceptPitch, RequireRoles(auth.RoleClient))
	api.PATCH("/pitches/:id/status", s.updatePitchStatus, RequireRoles(auth.RoleClient))
	api.DELETE("/pitches/:id", s.withdrawPitch, RequireRoles(auth.RoleProvider))

	api.GET("/payments/mine/client", s.listClientPayments, RequireRoles(auth.RoleClient))
	api.GET("/payments/mine/provider", s.listProviderPayments, RequireRoles(auth.RoleProvider))
	api.GET("/payments/:id", s.getPayment)
	api.POST("/payments/:id/pay", s.markAsPaid, RequireRoles(auth.RoleClient))
	api.POST("/payments/:id/complete", s.markWorkComplete, RequireRoles(auth.RoleProvider))
	api.POST("/payments/:id/release", s.releasePayment)
	api.POST("/payments/:id/dispute", s.disputePayment, RequireRoles(auth.RoleClient))

	api.GET("/notifications", s.listNotifications)
	api.POST("/notifications/read-all", s.markAllNotificationsRead)
	api.POST("/notifications/:id/read", s.markNotificationRead)

	admin := api.Group("/admin", RequireRoles(auth.RoleAdmin))
	admin.GET("/payments", s.listAllPayments)
	admin.POST("/payments/:id/refund", s.refundPayment)
	admin.POST("/payments/expire", s.expirePayments)
}

func (s *Server) register(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	user, err := s.Auth.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserView(*user))
}

func (s *Server) login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	result, err := s.Auth.Login(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": result.Token, "user": toUserView(result.User)})
}

func (s *Server) me(c echo.Context) error {
	user, err := s.Auth.GetUserByID(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserView(*user))
}

func (s *Server) createRequest(c echo.Context) error {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	req, err := s.Requests.Create(c.Request().Context(), actorFrom(c), request.CreateParams{
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toRequestView(req))
}

func (s *Server) listOpenRequests(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	reqs, err := s.Requests.ListOpen(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRequestViews(reqs))
}

func (s *Server) listMyRequests(c echo.Context) error {
	reqs, err := s.Requests.ListMine(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRequestViews(reqs))
}

func (s *Server) getRequest(c echo.Context) error {
	req, err := s.Requests.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRequestView(req))
}

func (s *Server) createPitch(c echo.Context) error {
	var body struct {
		RequestID     string  `json:"request_id"`
		Message       string  `json:"message"`
		ProposedPrice float64 `json:"proposed_price"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	p, err := s.Pitches.Create(c.Request().Context(), actorFrom(c), pitch.CreateParams{
		RequestID:     body.RequestID,
		Message:       body.Message,
		ProposedPrice: body.ProposedPrice,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toPitchView(p))
}

func (s *Server) listRequestPitches(c echo.Context) error {
	pitches, err := s.Pitches.ListByRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPitchViews(pitches))
}

func (s *Server) listMyPitches(c echo.Context) error {
	pitches, err := s.Pitches.ListMine(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPitchViews(pitches))
}

func (s *Server) getPitch(c echo.Context) error {
	p, err := s.Pitches.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPitchView(p))
}

func (s *Server) acceptPitch(c echo.Context) error {
	res, err := s.Pitches.Accept(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"pitch":   toPitchView(res.Pitch),
		"payment": toPaymentView(res.Payment),
	})
}

func (s *Server) updatePitchStatus(c echo.Context) error {
	var body struct {
		Status pitch.Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	p, err := s.Pitches.UpdateStatus(c.Request().Context(), actorFrom(c), c.Param("id"), body.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPitchView(p))
}

func (s *Server) withdrawPitch(c echo.Context) error {
	if err := s.Pitches.Withdraw(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) createEscrow(c echo.Context) error {
	p, err := s.Payments.CreateEscrow(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toPaymentView(p))
}

func (s *Server) getRequestPayment(c echo.Context) error {
	p, err := s.Payments.GetStatusByRequest(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) getPayment(c echo.Context) error {
	p, err := s.Payments.GetStatus(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) markAsPaid(c echo.Context) error {
	var body struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	p, err := s.Payments.MarkAsPaid(c.Request().Context(), actorFrom(c), c.Param("id"), body.TransactionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) markWorkComplete(c echo.Context) error {
	p, err := s.Payments.MarkWorkComplete(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) releasePayment(c echo.Context) error {
	p, err := s.Payments.Release(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) disputePayment(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	p, err := s.Payments.Dispute(c.Request().Context(), actorFrom(c), c.Param("id"), body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) refundPayment(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	p, err := s.Payments.Refund(c.Request().Context(), actorFrom(c), c.Param("id"), body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentView(p))
}

func (s *Server) listClientPayments(c echo.Context) error {
	payments, err := s.Payments.ListByClient(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentViews(payments))
}

func (s *Server) listProviderPayments(c echo.Context) error {
	payments, err := s.Payments.ListByProvider(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentViews(payments))
}

func (s *Server) listAllPayments(c echo.Context) error {
	payments, err := s.Payments.ListAll(c.Request().Context(), actorFrom(c), payment.Status(c.QueryParam("status")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentViews(payments))
}

func (s *Server) expirePayments(c echo.Context) error {
	var body struct {
		OlderThanHours int `json:"older_than_hours"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if body.OlderThanHours <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "older_than_hours must be positive"})
	}

	n, err := s.Payments.ExpireStale(c.Request().Context(), time.Duration(body.OlderThanHours)*time.Hour)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

func (s *Server) listNotifications(c echo.Context) error {
	ns, err := s.Notifications.ListMine(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toNotificationViews(ns))
}

func (s *Server) markNotificationRead(c echo.Context) error {
	if err := s.Notifications.MarkRead(c.Request().Context(), actorFrom(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) markAllNotificationsRead(c echo.Context) error {
	if err := s.Notifications.MarkAllRead(c.Request().Context(), actorFrom(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
