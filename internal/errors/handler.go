package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// ErrorResponse is the JSON body the status server sends for a failed request.
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorHandler turns errors into JSON responses and logs them.
type ErrorHandler struct {
	logger *logrus.Logger
}

func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError responds with the status matching err's type. Errors that are
// not AppErrors are reported as internal errors.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}
	h.respond(w, r, appErr.HTTPStatus(), appErr)
}

func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusNotFound, NewNotFoundError("endpoint "+r.URL.Path))
}

func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusMethodNotAllowed, NewValidationError("Method not allowed: "+r.Method))
}

// Middleware turns a handler panic into a 500 response.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			h.requestLog(r).WithField("panic", recovered).Error("Panic recovered in HTTP handler")
			h.respond(w, r, http.StatusInternalServerError, NewInternalError("An unexpected error occurred"))
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *ErrorHandler) requestLog(r *http.Request) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"request_id": r.Header.Get(requestIDHeader),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

func (h *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, status int, appErr *AppError) {
	log := h.requestLog(r).WithFields(logrus.Fields{
		"status":     status,
		"error_type": appErr.Type,
	})
	if status >= http.StatusInternalServerError {
		log.Error(appErr.Error())
	} else {
		log.Warn(appErr.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := ErrorResponse{Error: appErr, RequestID: r.Header.Get(requestIDHeader)}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}
