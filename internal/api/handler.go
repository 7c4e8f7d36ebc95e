package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reliefnet/internal/auth"
	"reliefnet/internal/broadcast"
	"reliefnet/internal/geocode"
	"reliefnet/internal/metrics"
	"reliefnet/internal/models"
	"reliefnet/internal/repository"
	"reliefnet/internal/weather"
)

// Publisher is the broadcast side of report creation. Publish runs only
// after the persistence write succeeds and its outcome never reaches the
// HTTP caller.
type Publisher interface {
	Publish(alert models.Alert) (broadcast.DeliveryReport, error)
}

// WeatherService is the weather collaborator boundary.
type WeatherService interface {
	Current(ctx context.Context, lat, lng string) (*weather.Conditions, error)
	Alerts(ctx context.Context, lat, lng string) ([]weather.Alert, error)
}

type Handler struct {
	users     repository.UserRepository
	requests  repository.HelpRequestRepository
	tokens    *auth.TokenIssuer
	geocoder  geocode.Resolver
	weather   WeatherService
	publisher Publisher
}

func NewHandler(users repository.UserRepository, requests repository.HelpRequestRepository,
	tokens *auth.TokenIssuer, geocoder geocode.Resolver, weatherSvc WeatherService, publisher Publisher) *Handler {
	return &Handler{
		users:     users,
		requests:  requests,
		tokens:    tokens,
		geocoder:  geocoder,
		weather:   weatherSvc,
		publisher: publisher,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.GET("/user-details", h.authRequired, h.userDetails)
	r.POST("/report-disaster", h.authRequired, h.reportDisaster)
	r.POST("/request-help", h.requestHelp)
	r.GET("/all-help-requests", h.allHelpRequests)
	r.GET("/reported-disasters", h.reportedDisasters)
	r.GET("/help-count", h.helpCount)
	r.GET("/current-weather", h.currentWeather)
	r.GET("/weather-alerts", h.weatherAlerts)
	r.GET("/health", h.health)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserRole string `json:"user_role"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Username == "" || req.Email == "" || req.Password == "" || req.UserRole == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required."})
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.UserRole,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := h.users.AddUser(c.Request.Context(), user)
	if err != nil {
		slog.Error("error registering user", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	slog.Info("user registered", "user_id", id)
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully!"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required."})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password."})
		return
	}
	if err != nil {
		slog.Error("error fetching user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password."})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		slog.Error("error issuing token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful!",
		"token":     token,
		"user_role": user.Role,
		"username":  user.Username,
	})
}

func (h *Handler) userDetails(c *gin.Context) {
	claims := claimsFrom(c)

	user, err := h.users.GetUserByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		slog.Error("error fetching user details", "user_id", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

type reportDisasterRequest struct {
	DisasterType string `json:"disasterType"`
	RequestType  string `json:"requestType"`
	Location     string `json:"location"`
	Description  string `json:"description"`
}

func (h *Handler) reportDisaster(c *gin.Context) {
	var req reportDisasterRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.DisasterType == "" || req.RequestType == "" || req.Location == "" || req.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required."})
		return
	}

	record := &models.HelpRequest{
		UserRole:     "Victim",
		RequestType:  req.RequestType,
		DisasterType: req.DisasterType,
		Location:     req.Location,
		Description:  req.Description,
	}
	if !h.persistAndBroadcast(c, record) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Disaster reported successfully!"})
}

type requestHelpRequest struct {
	UserRole     string `json:"user_role"`
	RequestType  string `json:"request_type"`
	DisasterType string `json:"disaster_type"`
	Location     string `json:"location"`
	Description  string `json:"description"`
}

func (h *Handler) requestHelp(c *gin.Context) {
	var req requestHelpRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.UserRole == "" || req.RequestType == "" || req.DisasterType == "" || req.Location == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required."})
		return
	}

	record := &models.HelpRequest{
		UserRole:     req.UserRole,
		RequestType:  req.RequestType,
		DisasterType: req.DisasterType,
		Location:     req.Location,
		Description:  req.Description,
	}
	if !h.persistAndBroadcast(c, record) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Help request submitted successfully!"})
}

// persistAndBroadcast is the Event Source path: geocode (best-effort),
// persist, and only then publish. A persistence failure answers the caller
// with an error and suppresses the broadcast entirely; a publish failure is
// logged and never reported back.
func (h *Handler) persistAndBroadcast(c *gin.Context, record *models.HelpRequest) bool {
	record.Coordinates = h.geocoder.Resolve(c.Request.Context(), record.Location)
	record.CreatedAt = time.Now().UTC()

	id, err := h.requests.AddHelpRequest(c.Request.Context(), record)
	if err != nil {
		slog.Error("error inserting help request", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Database error"})
		return false
	}
	metrics.HelpRequestsReceived.Inc()

	if _, err := h.publisher.Publish(record.Alert()); err != nil {
		slog.Error("error broadcasting alert", "id", id, "error", err)
	}

	slog.Info("help request stored and alert broadcast", "id", id, "disaster_type", record.DisasterType)
	return true
}

type helpRequestView struct {
	ID           int64     `json:"id"`
	UserRole     string    `json:"user_role"`
	RequestType  string    `json:"request_type"`
	DisasterType string    `json:"disaster_type"`
	Location     string    `json:"location"`
	Lat          *float64  `json:"lat"`
	Lng          *float64  `json:"lng"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *Handler) allHelpRequests(c *gin.Context) {
	requests, err := h.requests.ListHelpRequests(c.Request.Context(), repository.HelpRequestFilter{})
	if err != nil {
		slog.Error("error fetching help requests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	views := make([]helpRequestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, helpRequestView{
			ID:           r.ID,
			UserRole:     r.UserRole,
			RequestType:  r.RequestType,
			DisasterType: r.DisasterType,
			Location:     r.Location,
			Lat:          r.Coordinates.Lat,
			Lng:          r.Coordinates.Lng,
			CreatedAt:    r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}

type reportedDisasterView struct {
	DisasterType string    `json:"disasterType"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	ReportedAt   time.Time `json:"reportedAt"`
	Lat          *float64  `json:"lat"`
	Lng          *float64  `json:"lng"`
}

func (h *Handler) reportedDisasters(c *gin.Context) {
	requests, err := h.requests.ListHelpRequests(c.Request.Context(), repository.HelpRequestFilter{})
	if err != nil {
		slog.Error("error fetching reported disasters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	views := make([]reportedDisasterView, 0, len(requests))
	for _, r := range requests {
		views = append(views, reportedDisasterView{
			DisasterType: r.DisasterType,
			Location:     r.Location,
			Description:  r.Description,
			ReportedAt:   r.CreatedAt,
			Lat:          r.Coordinates.Lat,
			Lng:          r.Coordinates.Lng,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) helpCount(c *gin.Context) {
	count, err := h.requests.CountHelpRequests(c.Request.Context())
	if err != nil {
		slog.Error("error fetching help count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) currentWeather(c *gin.Context) {
	lat, lng := c.Query("lat"), c.Query("lng")
	if lat == "" || lng == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	conditions, err := h.weather.Current(c.Request.Context(), lat, lng)
	if err != nil {
		slog.Error("weather data error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to fetch weather data"})
		return
	}

	// Shape kept compatible with the map frontend's expectations
	c.JSON(http.StatusOK, gin.H{
		"name":    conditions.City,
		"country": conditions.Country,
		"temp":    conditions.TempC,
		"main": gin.H{
			"temp":     conditions.TempC,
			"humidity": conditions.Humidity,
		},
		"wind": gin.H{
			"speed": conditions.WindKph,
		},
		"weather": []gin.H{{
			"main":        conditions.Condition,
			"description": conditions.Condition,
			"icon":        conditions.Icon,
		}},
	})
}

func (h *Handler) weatherAlerts(c *gin.Context) {
	lat, lng := c.Query("lat"), c.Query("lng")
	if lat == "" || lng == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	alerts, err := h.weather.Alerts(c.Request.Context(), lat, lng)
	if err != nil {
		slog.Error("weather alerts error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to fetch weather alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
