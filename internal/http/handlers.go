package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-hail/internal/auth"
	"github.com/example/ride-hail/internal/config"
	"github.com/example/ride-hail/internal/dispatch"
	"github.com/example/ride-hail/internal/fare"
	"github.com/example/ride-hail/internal/geo"
	"github.com/example/ride-hail/internal/ingest"
	"github.com/example/ride-hail/internal/logging"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/rides"
	"github.com/example/ride-hail/internal/rooms"
	"github.com/example/ride-hail/internal/storage"
)

type Server struct {
	Users     *storage.UserStore
	Rides     *rides.Service
	Auth      *auth.Manager
	Fares     *fare.Estimator
	Rooms     *rooms.Registry
	Hub       *dispatch.Hub
	Router    *dispatch.Router
	Locations geo.LocationCache
	LocFeed   *ingest.Producer

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the components from config. Redis, Kafka, Postgres and
// the push endpoint are all optional; the server degrades to in-memory
// single-instance operation when they are absent.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger("ride-hail", cfg.LogLevel)
	}

	var store storage.RideStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Warn("postgres unavailable, using memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var locations geo.LocationCache
	if cfg.RedisAddr != "" {
		locations = geo.NewRedisLocations(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisLocationKey)
	} else {
		locations = geo.NewMemoryLocations()
	}

	var locFeed *ingest.Producer
	var journal rides.Journal
	if len(cfg.KafkaBrokers) > 0 {
		locFeed = ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaLocationTopic)
		journal = ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventTopic)
	}

	reg := rooms.NewRegistry()
	hub := dispatch.NewHub()
	router := dispatch.NewRouter(reg, hub, logger)

	estimator := fare.NewEstimator(cfg.DefaultSpeedMps)
	rideSvc := &rides.Service{
		Store:   store,
		Router:  router,
		Fares:   estimator,
		Journal: journal,
		Logger:  logger,
	}
	if cfg.PushEndpoint != "" {
		rideSvc.Push = dispatch.NewPushNotifier(cfg.PushEndpoint, cfg.PushKey)
	}

	s := &Server{
		Users:     storage.NewUserStore(),
		Rides:     rideSvc,
		Auth:      auth.NewManager(cfg.JWTSecret, cfg.TokenTTL),
		Fares:     estimator,
		Rooms:     reg,
		Hub:       hub,
		Router:    router,
		Locations: locations,
		LocFeed:   locFeed,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/auth/register", s.handleRegister).Methods("POST")
	s.mux.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST")

	s.mux.HandleFunc("/api/users/me", s.requireAuth(s.handleMe)).Methods("GET")
	s.mux.HandleFunc("/api/users/update", s.requireAuth(s.handleUpdateUser)).Methods("PUT")

	s.mux.HandleFunc("/api/rides", s.requireAuth(s.handleCreateRide)).Methods("POST")
	s.mux.HandleFunc("/api/rides/current", s.requireAuth(s.handleCurrentRide)).Methods("GET")
	s.mux.HandleFunc("/api/rides/history", s.requireAuth(s.handleRideHistory)).Methods("GET")
	s.mux.HandleFunc("/api/rides/available", s.requireAuth(s.handleAvailableRides)).Methods("GET")
	s.mux.HandleFunc("/api/rides/calculate-fare", s.handleCalculateFare).Methods("POST")
	s.mux.HandleFunc("/api/rides/{id}/accept", s.requireAuth(s.handleAcceptRide)).Methods("PUT")
	s.mux.HandleFunc("/api/rides/{id}/start", s.requireAuth(s.handleStartRide)).Methods("PUT")
	s.mux.HandleFunc("/api/rides/{id}/complete", s.requireAuth(s.handleCompleteRide)).Methods("PUT")
	s.mux.HandleFunc("/api/rides/{id}/cancel", s.requireAuth(s.handleCancelRide)).Methods("PUT")

	s.mux.HandleFunc("/api/drivers/{id}/location", s.requireAuth(s.handleDriverLastLocation)).Methods("GET")

	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type registerRequest struct {
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	UserType    models.UserType `json:"userType"`
	PhoneNumber string          `json:"phoneNumber"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	if req.UserType != models.UserTypeRider && req.UserType != models.UserTypeDriver {
		writeError(w, http.StatusBadRequest, "userType must be rider or driver")
		return
	}
	u := &models.User{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		UserType:    req.UserType,
		PhoneNumber: req.PhoneNumber,
		CreatedAt:   time.Now(),
	}
	if err := s.Users.CreateUser(u); err != nil {
		s.writeStoreError(w, err)
		return
	}
	token, err := s.Auth.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	u, err := s.Users.GetUserByEmail(req.Email)
	if err != nil || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.Auth.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "token": token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	u, err := s.Users.GetUser(claims.Subject)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req struct {
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		PhoneNumber *string `json:"phoneNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.Users.UpdateUser(claims.Subject, func(u *models.User) error {
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.PhoneNumber != nil {
			u.PhoneNumber = *req.PhoneNumber
		}
		return nil
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type createRideRequest struct {
	Pickup  models.Location `json:"pickup"`
	Dropoff models.Location `json:"dropoff"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ride, err := s.Rides.Request(claims.Subject, req.Pickup, req.Dropoff)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims.UserType != string(models.UserTypeDriver) {
		writeError(w, http.StatusForbidden, "only drivers can accept rides")
		return
	}
	ride, err := s.Rides.Accept(mux.Vars(r)["id"], claims.Subject)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.Start(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.Complete(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.Cancel(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCurrentRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	ride, err := s.Rides.Current(claims.Subject)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	// null when no active ride, matching the original API
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleRideHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	list, err := s.Rides.History(claims.Subject)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []*models.Ride{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAvailableRides(w http.ResponseWriter, r *http.Request) {
	list, err := s.Rides.Available()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if list == nil {
		list = []*models.Ride{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCalculateFare(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.Fares.Estimate(req.Pickup, req.Dropoff))
}

func (s *Server) handleDriverLastLocation(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.Locations.Last(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "no known location for driver")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.Auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, rides.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "ride is not in a state that allows this action")
	case errors.Is(err, storage.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "user already exists")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
