package engine

import "errors"

// Engine admission/lookup errors named in spec.md section 7. These are
// plain sentinel values — there are no panics anywhere in the matching
// path; the dispatcher is responsible for turning one of these into the
// {"ok":false,"error":"..."} wire shape.
var (
	ErrTooManyOrders   = errors.New("TOO_MANY_ORDERS")
	ErrTooHighAccount  = errors.New("TOO_HIGH_ACCOUNT")
	ErrSillyValue      = errors.New("SILLY_VALUE")
	ErrNoSuchOrder     = errors.New("No such ID")
	ErrAccountNotKnown = errors.New("Account not known on this book")
)
