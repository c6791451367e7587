package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"recharge-backend/internal/config"
	"recharge-backend/internal/domain"
	"recharge-backend/internal/usecase"
)

type Server struct {
	cfg      config.Config
	log      *logrus.Logger
	auth     *usecase.AuthService
	checkout *usecase.CheckoutService
	webhook  *usecase.WebhookService
	engine   *gin.Engine
}

func New(cfg config.Config, log *logrus.Logger, auth *usecase.AuthService, checkout *usecase.CheckoutService, webhook *usecase.WebhookService) *Server {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		auth:     auth,
		checkout: checkout,
		webhook:  webhook,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.cors())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	api := s.engine.Group("/api")
	api.POST("/auth/login", s.handleLogin)
	api.GET("/skus", s.handleListSKUs)
	api.POST("/webhooks/payment", s.handleWebhook)

	authed := api.Group("/", s.requireAuth())
	authed.POST("/checkout", s.handleCheckout)
	authed.GET("/checkout/session/:ref", s.handleGetOrderBySession)
	authed.GET("/orders", s.handleListOrders)
	authed.GET("/orders/:id", s.handleGetOrder)
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if token == "" || token == h {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "login required"})
			return
		}
		uid, email, err := s.auth.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "login required"})
			return
		}
		c.Set("user_id", uid)
		c.Set("email", email)
		c.Next()
	}
}

type loginReq struct {
	Email string `json:"email"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}
	token, user, err := s.auth.Login(c.Request.Context(), req.Email)
	if err != nil {
		s.log.WithError(err).Info("login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
}

func (s *Server) handleListSKUs(c *gin.Context) {
	skus, err := s.checkout.ListSKUs(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("list skus failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "skus": skus})
}

// checkoutReq deliberately carries no amount or currency field; pricing is
// read server-side from the catalog.
type checkoutReq struct {
	SkuID  string `json:"skuId"`
	Locale string `json:"locale"`
}

func (s *Server) handleCheckout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}
	userID := c.GetString("user_id")
	redirect, err := s.checkout.CreateCheckoutSession(c.Request.Context(), userID, req.SkuID, req.Locale)
	if err != nil {
		s.failCheckout(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": redirect.OrderID, "url": redirect.URL})
}

// failCheckout maps error kinds to sanitized user-facing messages; raw
// store/provider text never leaves the logs.
func (s *Server) failCheckout(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	s.log.WithError(err).WithField("kind", kind).Warn("checkout failed")
	status := http.StatusBadGateway
	msg := "payment processing failed, please try again"
	switch kind {
	case domain.KindUnauthenticated:
		status, msg = http.StatusUnauthorized, "login required"
	case domain.KindProductUnavailable:
		status, msg = http.StatusNotFound, "this product is currently unavailable"
	case domain.KindInvalidPrice:
		status, msg = http.StatusUnprocessableEntity, "this product cannot be purchased right now"
	}
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// handleWebhook speaks pure status codes back to the provider: 2xx stops
// redelivery, 400 rejects a bad signature, anything else asks for another
// delivery. The body never identifies orders.
func (s *Server) handleWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	sig := c.GetHeader("Signature")
	if err := s.webhook.HandleEvent(c.Request.Context(), raw, sig); err != nil {
		if domain.IsKind(err, domain.KindInvalidSignature) {
			s.log.WithError(err).Warn("webhook signature rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		s.log.WithError(err).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.checkout.GetOrderForUser(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		s.orderReadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}

func (s *Server) handleGetOrderBySession(c *gin.Context) {
	o, err := s.checkout.GetOrderBySessionForUser(c.Request.Context(), c.GetString("user_id"), c.Param("ref"))
	if err != nil {
		s.orderReadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
}

func (s *Server) handleListOrders(c *gin.Context) {
	orders, err := s.checkout.ListOrdersForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		s.orderReadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (s *Server) orderReadError(c *gin.Context, err error) {
	if domain.IsKind(err, domain.KindNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "order not found"})
		return
	}
	s.log.WithError(err).Error("order read failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "temporary error, please try again"})
}
