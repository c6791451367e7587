package domain

import "fmt"

// Kind classifies a failure for retry policy and for the HTTP layer's
// response shaping. It is the only error information that crosses the
// service boundary; raw store/provider text stays in logs.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindProductUnavailable Kind = "product_unavailable"
	KindInvalidPrice       Kind = "invalid_price"
	KindPersistence        Kind = "persistence"
	KindProvider           Kind = "provider"
	KindInvalidSignature   Kind = "invalid_signature"
	KindIntegrityMismatch  Kind = "integrity_mismatch"
	KindConflict           Kind = "conflict"
	KindNotFound           Kind = "not_found"
)

type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func E(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf walks the chain looking for a classified error. Unclassified
// errors report KindPersistence so unknown infrastructure failures stay
// retryable rather than silently terminal.
func KindOf(err error) Kind {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindPersistence
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
