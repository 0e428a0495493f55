package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/db"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/eventbus"
)

type Server struct {
	Store *db.Store
	Echo  *echo.Echo
	DB    *pgxpool.Pool
	Bus   *eventbus.Bus

	cfg      *config.Config
	validate *validator.Validate
}

func NewServer(pool *pgxpool.Pool, bus *eventbus.Bus, cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s := &Server{
		DB:       pool,
		Store:    db.NewStore(pool),
		Echo:     e,
		Bus:      bus,
		cfg:      cfg,
		validate: validator.New(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/tenders", s.handleListTenders)
	s.Echo.GET("/tenders/:id", s.handleGetTender)
	s.Echo.GET("/tenders/:id/documents", s.handleGetDocuments)
	s.Echo.GET("/tenders/:id/contacts", s.handleGetContacts)
	s.Echo.GET("/sources", s.handleGetSources)
	s.Echo.GET("/stats", s.handleGetStats)
	s.Echo.GET("/ws/notifications", s.handleNotificationsWS)

	prefs := s.Echo.Group("/user")
	prefs.Use(s.jwtMiddleware)
	prefs.POST("/preferences", s.handleSavePreferences)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListTenders(c echo.Context) error {
	params := db.ListParams{
		Source:   c.QueryParam("source"),
		Status:   c.QueryParam("status"),
		Buyer:    c.QueryParam("buyer"),
		Category: c.QueryParam("category"),
		Query:    c.QueryParam("q"),
		Sort:     c.QueryParam("sort"),
		Order:    c.QueryParam("order"),
	}

	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		params.Offset = o
	}

	loc := s.cfg.Location()
	params.ClosingFrom = parseTimeParam(c.QueryParam("closing_from"), loc)
	params.ClosingTo = parseTimeParam(c.QueryParam("closing_to"), loc)
	params.PublishedFrom = parseTimeParam(c.QueryParam("published_from"), loc)
	params.PublishedTo = parseTimeParam(c.QueryParam("published_to"), loc)

	result, err := s.Store.ListTenders(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list tenders: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

// parseTimeParam accepts RFC3339 or a bare date, interpreted in the
// configured local zone.
func parseTimeParam(s string, loc *time.Location) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return &t
	}
	return nil
}

func (s *Server) tenderID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func (s *Server) handleGetTender(c echo.Context) error {
	id, err := s.tenderID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid tender ID"})
	}

	tender, err := s.Store.GetTender(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, tender)
}

func (s *Server) handleGetDocuments(c echo.Context) error {
	id, err := s.tenderID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid tender ID"})
	}

	docs, err := s.Store.ListDocuments(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleGetContacts(c echo.Context) error {
	id, err := s.tenderID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid tender ID"})
	}

	contacts, err := s.Store.ListContacts(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, contacts)
}

func (s *Server) handleGetSources(c echo.Context) error {
	sources, err := s.Store.GetSources(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sources)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

type PreferencesRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Categories []string `json:"categories" validate:"required,min=1,dive,required"`
}

func (s *Server) handleSavePreferences(c echo.Context) error {
	var req PreferencesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	err := s.Store.SavePreferences(c.Request().Context(), req.Email, req.Categories, s.cfg.TenderTopic)
	if errors.Is(err, db.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}
	if err != nil {
		c.Logger().Errorf("Failed to save preferences: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"email":      req.Email,
		"categories": req.Categories,
	})
}

// jwtMiddleware validates an HS256 bearer token when JWT_SECRET is set;
// without a configured secret the identity provider sits upstream and the
// route stays open.
func (s *Server) jwtMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	secret := os.Getenv("JWT_SECRET")
	return func(c echo.Context) error {
		if secret == "" {
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) < 8 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token, err := jwt.Parse(authHeader[7:], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		return next(c)
	}
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
