// Package api provides the HTTP surface of the livehook server: the WebSub
// callback the hub verifies and posts to, plus a health check.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

const (
	// DefaultDeliveryTimeout bounds routing and delivery of one notification.
	DefaultDeliveryTimeout = 30 * time.Second

	signatureHeader = "X-Hub-Signature"
	signaturePrefix = "sha256="
	maxBodyBytes    = 1 << 20
)

// Dispatcher routes a notification and delivers it. livehook.NotificationRouter implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sender livehook.Sender, externalUserID string,
		notification model.StreamNotification) ([]model.DeliveryResult, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	dispatcher      Dispatcher
	sender          livehook.Sender
	logger          livehook.Logger
	secret          string
	deliveryTimeout time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSecret enables X-Hub-Signature verification with the hub.secret sent on subscribe.
func WithSecret(secret string) HandlerOption {
	return func(h *Handler) {
		h.secret = secret
	}
}

// WithDeliveryTimeout bounds the work done for one notification.
func WithDeliveryTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.deliveryTimeout = timeout
		}
	}
}

// NewHandler creates a new API handler.
func NewHandler(dispatcher Dispatcher, sender livehook.Sender, logger livehook.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		dispatcher:      dispatcher,
		sender:          sender,
		logger:          logger.With("component", "webhook"),
		deliveryTimeout: DefaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(h.logger))

	r.Get("/health", h.HandleHealth)
	r.Get("/webhook/{subject_id}", h.HandleVerify)
	r.Post("/webhook/{subject_id}", h.HandleNotification)
	return r
}

// HandleVerify handles GET /webhook/{subject_id}: the hub's intent
// verification. The challenge is echoed back verbatim.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subject_id")
	q := r.URL.Query()

	if q.Get("hub.mode") == "denied" {
		h.logger.Warnf("Hub denied subscription: subject=%s, topic=%s, reason=%s",
			subjectID, q.Get("hub.topic"), q.Get("hub.reason"))
		w.WriteHeader(http.StatusOK)
		return
	}

	challenge := q.Get("hub.challenge")
	if challenge == "" {
		h.respondError(w, http.StatusBadRequest, "hub.challenge is required", livehook.ErrCodeValidation)
		return
	}

	h.logger.Infof("Hub verified %s: subject=%s, lease_seconds=%s", q.Get("hub.mode"), subjectID, q.Get("hub.lease_seconds"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// HandleNotification handles POST /webhook/{subject_id}. The hub always gets
// 200: malformed or unverifiable bodies are logged and dropped.
func (h *Handler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subject_id")
	logger := h.logger.With("notification_id", uuid.NewString())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Warnf("Dropping notification, body unreadable: subject=%s, error=%v", subjectID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.secret != "" && !validSignature(h.secret, body, r.Header.Get(signatureHeader)) {
		logger.Warnf("Dropping notification, signature mismatch: subject=%s", subjectID)
		w.WriteHeader(http.StatusOK)
		return
	}

	var notification model.StreamNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		logger.Warnf("Dropping notification, invalid JSON: subject=%s, error=%v", subjectID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	// delivery outlives the hub's request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.deliveryTimeout)
	defer cancel()

	results, err := h.dispatcher.Dispatch(ctx, h.sender, subjectID, notification)
	if err != nil {
		logger.Errorf("Notification not routed: subject=%s, error=%v", subjectID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	delivered := 0
	for _, res := range results {
		if res.Delivered() {
			delivered++
		}
	}
	logger.Infof("Notification dispatched: subject=%s, live=%t, delivered=%d, failed=%d",
		subjectID, notification.IsLive(), delivered, len(results)-delivered)
	w.WriteHeader(http.StatusOK)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// validSignature checks header against HMAC-SHA256(secret, body).
func validSignature(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(logger livehook.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debugf("%s %s - %d in %v", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}
