// Package apierror defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate them into HTTP responses
// without leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for 4xx/5xx responses that do not
// carry a domain code (malformed JSON, internal errors).
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ── Domain errors ────────────────────────────────────────────────────────────

type Code string

const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeOutOfStock              Code = "OUT_OF_STOCK"
	CodeCreditLimitExceeded     Code = "CREDIT_LIMIT_EXCEEDED"
	CodeInsufficientCashBalance Code = "INSUFFICIENT_CASH_BALANCE"
	CodeRegisterNotOpen         Code = "REGISTER_NOT_OPEN"
	CodeAlreadyOpen             Code = "ALREADY_OPEN"
	CodeNotFound                Code = "NOT_FOUND"
	CodeAlreadyPaid             Code = "ALREADY_PAID"
	CodeTransactionTimeout      Code = "TRANSACTION_TIMEOUT"
)

// Error is a typed domain failure. Details carries the structured context
// callers need (requested vs available amounts, ids) so that clients never
// have to parse Detail.
type Error struct {
	Code    Code           `json:"code"`
	Detail  string         `json:"detail"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is regardless of details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrValidation              = &Error{Code: CodeValidation}
	ErrOutOfStock              = &Error{Code: CodeOutOfStock}
	ErrCreditLimitExceeded     = &Error{Code: CodeCreditLimitExceeded}
	ErrInsufficientCashBalance = &Error{Code: CodeInsufficientCashBalance}
	ErrRegisterNotOpen         = &Error{Code: CodeRegisterNotOpen}
	ErrAlreadyOpen             = &Error{Code: CodeAlreadyOpen}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrAlreadyPaid             = &Error{Code: CodeAlreadyPaid}
	ErrTransactionTimeout      = &Error{Code: CodeTransactionTimeout}
)

func Validation(detail string, details map[string]any) *Error {
	return &Error{Code: CodeValidation, Detail: detail, Details: details}
}

func OutOfStock(productoID, nombre string, solicitado, disponible int) *Error {
	return &Error{
		Code:   CodeOutOfStock,
		Detail: fmt.Sprintf("stock insuficiente para %s", nombre),
		Details: map[string]any{
			"producto_id": productoID,
			"solicitado":  solicitado,
			"disponible":  disponible,
		},
	}
}

func CreditLimitExceeded(clienteID, limite, saldo, solicitado string) *Error {
	return &Error{
		Code:   CodeCreditLimitExceeded,
		Detail: "la venta supera el limite de credito del cliente",
		Details: map[string]any{
			"cliente_id":  clienteID,
			"limite":      limite,
			"saldo_deuda": saldo,
			"solicitado":  solicitado,
		},
	}
}

func InsufficientCashBalance(metodo, solicitado, disponible string) *Error {
	return &Error{
		Code:   CodeInsufficientCashBalance,
		Detail: "saldo insuficiente en caja para el metodo " + metodo,
		Details: map[string]any{
			"metodo":     metodo,
			"solicitado": solicitado,
			"disponible": disponible,
		},
	}
}

func RegisterNotOpen(usuarioID string) *Error {
	return &Error{
		Code:    CodeRegisterNotOpen,
		Detail:  "no hay una caja abierta para el usuario",
		Details: map[string]any{"usuario_id": usuarioID},
	}
}

func AlreadyOpen(usuarioID string) *Error {
	return &Error{
		Code:    CodeAlreadyOpen,
		Detail:  "el usuario ya tiene una caja abierta",
		Details: map[string]any{"usuario_id": usuarioID},
	}
}

func NotFound(recurso, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Detail:  recurso + " no encontrado",
		Details: map[string]any{"recurso": recurso, "id": id},
	}
}

func AlreadyPaid(recurso, id string) *Error {
	return &Error{
		Code:    CodeAlreadyPaid,
		Detail:  recurso + " ya se encuentra pagado",
		Details: map[string]any{"recurso": recurso, "id": id},
	}
}

func TransactionTimeout(cause error) *Error {
	return &Error{
		Code:   CodeTransactionTimeout,
		Detail: "la transaccion excedio el tiempo limite, reintente",
		cause:  cause,
	}
}

// Status maps an error to the HTTP status a handler should return.
// Anything that is not a domain error is a 500.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeOutOfStock, CodeCreditLimitExceeded, CodeInsufficientCashBalance,
		CodeRegisterNotOpen, CodeAlreadyOpen, CodeAlreadyPaid:
		return http.StatusConflict
	case CodeTransactionTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely retry the whole operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransactionTimeout)
}

// As extracts the domain error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
