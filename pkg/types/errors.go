package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors for callers and transports.
type ErrorKind string

// Error kinds.
const (
	KindValidation    ErrorKind = "validation"
	KindState         ErrorKind = "state"
	KindAuthorization ErrorKind = "authorization"
	KindResource      ErrorKind = "resource"
	KindDuplicate     ErrorKind = "duplicate"
	KindNotFound      ErrorKind = "not_found"
	KindInternal      ErrorKind = "internal"
)

// Error is a classified engine error.
type Error struct {
	Kind    ErrorKind // broad class, used for status mapping
	Code    string    // stable machine-readable code
	Message string    // human-readable detail
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code so that detailed errors created with Errorf
// still satisfy errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Errorf returns a copy of the sentinel with a formatted message.
func Errorf(sentinel *Error, format string, args ...any) *Error {
	return &Error{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "INTERNAL".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// Engine error codes.
//
//nolint:gochecknoglobals // sentinel errors
var (
	ErrInvalidPrice    = &Error{Kind: KindValidation, Code: "INVALID_PRICE", Message: "price must be in (0, 1) on a 0.01 tick"}
	ErrInvalidShares   = &Error{Kind: KindValidation, Code: "INVALID_SHARES", Message: "shares must be positive on a 0.01 tick"}
	ErrInvalidAmount   = &Error{Kind: KindValidation, Code: "INVALID_AMOUNT", Message: "amount must be positive"}
	ErrInvalidMarket   = &Error{Kind: KindValidation, Code: "INVALID_MARKET", Message: "invalid market parameters"}
	ErrInvalidArgument = &Error{Kind: KindValidation, Code: "INVALID_ARGUMENT", Message: "invalid argument"}

	ErrMarketClosed     = &Error{Kind: KindState, Code: "MARKET_CLOSED", Message: "market is not open for trading"}
	ErrAlreadyInactive  = &Error{Kind: KindState, Code: "ALREADY_INACTIVE", Message: "order is not active"}
	ErrNotResolved      = &Error{Kind: KindState, Code: "NOT_RESOLVED", Message: "market is not resolved"}
	ErrAlreadyResolved  = &Error{Kind: KindState, Code: "ALREADY_RESOLVED", Message: "market is already resolved"}
	ErrAlreadyRedeemed  = &Error{Kind: KindState, Code: "ALREADY_REDEEMED", Message: "position already redeemed"}
	ErrTooEarly         = &Error{Kind: KindState, Code: "TOO_EARLY", Message: "market window has not ended"}
	ErrNothingToRedeem  = &Error{Kind: KindState, Code: "NOTHING_TO_REDEEM", Message: "no shares to redeem"}
	ErrFaucetDisabled   = &Error{Kind: KindState, Code: "FAUCET_DISABLED", Message: "faucet is disabled"}
	ErrProviderDisabled = &Error{Kind: KindState, Code: "PROVIDER_DISABLED", Message: "no tweet metrics provider configured"}

	ErrNotOwner     = &Error{Kind: KindAuthorization, Code: "NOT_OWNER", Message: "caller is not the order maker"}
	ErrNotHolder    = &Error{Kind: KindAuthorization, Code: "NOT_HOLDER", Message: "account never held this outcome"}
	ErrNotOracle    = &Error{Kind: KindAuthorization, Code: "NOT_ORACLE", Message: "caller is not the resolution oracle"}
	ErrBadSignature = &Error{Kind: KindAuthorization, Code: "BAD_SIGNATURE", Message: "request signature does not match account"}

	ErrInsufficientBalance = &Error{Kind: KindResource, Code: "INSUFFICIENT_BALANCE", Message: "insufficient collateral"}
	ErrInsufficientShares  = &Error{Kind: KindResource, Code: "INSUFFICIENT_SHARES", Message: "insufficient shares"}

	ErrMarketExists = &Error{Kind: KindDuplicate, Code: "MARKET_EXISTS", Message: "market already exists"}

	ErrMarketNotFound = &Error{Kind: KindNotFound, Code: "MARKET_NOT_FOUND", Message: "market not found"}
	ErrOrderNotFound  = &Error{Kind: KindNotFound, Code: "ORDER_NOT_FOUND", Message: "order not found"}
	ErrTweetNotFound  = &Error{Kind: KindNotFound, Code: "TWEET_NOT_FOUND", Message: "tweet not found"}

	ErrRateLimited = &Error{Kind: KindInternal, Code: "RATE_LIMITED", Message: "tweet metrics provider rate limited"}
	ErrInsolvent   = &Error{Kind: KindInternal, Code: "INSOLVENT", Message: "market accounting invariant violated"}
)
