package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntegrationsErrorBadInput        = "INTEGRATIONS_BAD_INPUT"
	IntegrationsErrorConfig          = "INTEGRATIONS_CONFIG_INVALID"
	IntegrationsErrorUnknownProvider = "INTEGRATIONS_UNKNOWN_PROVIDER"
	IntegrationsErrorStateInvalid    = "INTEGRATIONS_STATE_INVALID"
	IntegrationsErrorExchangeFailed  = "INTEGRATIONS_EXCHANGE_FAILED"
	IntegrationsErrorRateLimited     = "INTEGRATIONS_RATE_LIMITED"
	IntegrationsErrorInternal        = "INTEGRATIONS_INTERNAL_ERROR"
)

func newConfigError(message string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, goerrors.CategoryConflict).
			WithCode(http.StatusInternalServerError).
			WithTextCode(IntegrationsErrorConfig),
	)
}

func newStateError(message string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(IntegrationsErrorStateInvalid),
	)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unsupported integration"):
		return newIntegrationsError(err.Error(), goerrors.CategoryNotFound, IntegrationsErrorUnknownProvider)
	case strings.Contains(msg, "credentials are not configured"),
		strings.Contains(msg, "state secret"):
		return newIntegrationsError(err.Error(), goerrors.CategoryConflict, IntegrationsErrorConfig)
	case strings.Contains(msg, "oauth state"):
		return newIntegrationsError(err.Error(), goerrors.CategoryAuth, IntegrationsErrorStateInvalid)
	case strings.Contains(msg, "token endpoint"), strings.Contains(msg, "exchange"):
		return newIntegrationsError(err.Error(), goerrors.CategoryExternal, IntegrationsErrorExchangeFailed)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newIntegrationsError(err.Error(), goerrors.CategoryRateLimit, IntegrationsErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newIntegrationsError(err.Error(), goerrors.CategoryBadInput, IntegrationsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newIntegrationsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationsErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationsErrorUnknownProvider
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IntegrationsErrorStateInvalid
	case goerrors.CategoryConflict:
		return IntegrationsErrorConfig
	case goerrors.CategoryRateLimit:
		return IntegrationsErrorRateLimited
	case goerrors.CategoryExternal:
		return IntegrationsErrorExchangeFailed
	default:
		return IntegrationsErrorInternal
	}
}

func integrationsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
