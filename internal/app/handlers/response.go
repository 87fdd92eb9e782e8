package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/linemk/cart-shop/internal/service"
	"github.com/linemk/cart-shop/internal/storage"
)

// Envelope общий формат всех ответов API
type Envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

const (
	codeValidation         = "VALIDATION_ERROR"
	codeBadRequest         = "BAD_REQUEST"
	codeUnauthenticated    = "UNAUTHENTICATED"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeEmailTaken         = "EMAIL_TAKEN"
	codeResourceLocked     = "RESOURCE_LOCKED"
	codeInternal           = "INTERNAL_SERVER_ERROR"
)

var validate = newValidator()

// newValidator в ошибках валидации поля называются по json тегу
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// срок действия карты в формате MM/YYYY
	_ = v.RegisterValidation("card_expiry", func(fl validator.FieldLevel) bool {
		return cardExpiryRe.MatchString(fl.Field().String())
	})
	return v
}

var cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{4}$`)

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed to encode response", logger.Err(err))
	}
}

func writeOK(log *slog.Logger, w http.ResponseWriter, status int, message string, data any) {
	writeJSON(log, w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeFail(log *slog.Logger, w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(log, w, status, Envelope{
		Success: false,
		Message: message,
		Error:   &ErrorBody{Error: code, Message: message, Details: details},
	})
}

// writeError переводит ошибку сервиса в HTTP статус и код.
// Текст неклассифицированных ошибок клиенту не отдаётся
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	if domainErr, ok := apperr.As(err); ok {
		log.Warn("request rejected", slog.String("code", domainErr.Code()), logger.Err(err))
		writeFail(log, w, domainStatus(domainErr.Kind), domainErr.Code(), domainErr.Error(), nil)
		return
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		writeFail(log, w, http.StatusUnprocessableEntity, codeValidation, "validation failed", validationDetails(validationErrs))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeFail(log, w, http.StatusUnauthorized, codeInvalidCredentials, "invalid email or password", nil)
	case errors.Is(err, storage.ErrEmailTaken):
		writeFail(log, w, http.StatusConflict, codeEmailTaken, "email is already registered", nil)
	case errors.Is(err, storage.ErrResourceLocked):
		log.Warn("resource locked", logger.Err(err))
		writeFail(log, w, http.StatusConflict, codeResourceLocked, "resource is busy, please retry", nil)
	default:
		log.Error("request failed", logger.Err(err))
		writeFail(log, w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}

func domainStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindCartClosed, apperr.KindInsufficientStock:
		return http.StatusConflict
	case apperr.KindCartNotFound, apperr.KindProductNotFound, apperr.KindUserNotFound:
		return http.StatusNotFound
	case apperr.KindExternalAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// validationDetails поле (json имя) -> правило, которое не прошло
func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	return details
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func badRequest(log *slog.Logger, w http.ResponseWriter, msg string, err error) {
	log.Warn("bad request", slog.String("reason", msg), logger.Err(err))
	writeFail(log, w, http.StatusBadRequest, codeBadRequest, msg, nil)
}

func currentUser(log *slog.Logger, w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		log.Error("userID not found in context")
		writeFail(log, w, http.StatusUnauthorized, codeUnauthenticated, "unauthenticated", nil)
		return 0, false
	}
	return userID, true
}
