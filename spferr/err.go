// Package spferr classifies the causes reported along with SPF results.
//
// Callers use Kind to tell a broken record from a transient DNS condition
// or from a policy exceeding processing limits.
package spferr

import (
	"errors"
	"strconv"
)

// Kind is the class of an error cause.
type Kind int8

const (
	KindUnknown Kind = iota
	KindSyntax
	KindValidation
	KindDNS
	KindLimit
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindValidation:
		return "validation"
	case KindDNS:
		return "dns"
	case KindLimit:
		return "limit"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = 0
		return nil
	}
	switch s := string(text); s {
	case "unknown":
		*k = KindUnknown
		return nil
	case "syntax":
		*k = KindSyntax
		return nil
	case "validation":
		*k = KindValidation
		return nil
	case "dns":
		*k = KindDNS
		return nil
	case "limit":
		*k = KindLimit
		return nil
	default:
		i, err := strconv.Atoi(s)
		*k = Kind(i)
		return err
	}
}

// Kinder is implemented by errors that know their own Kind.
type Kinder interface {
	Kind() Kind
}

// KindOf returns the Kind of the first error in err's chain implementing
// Kinder, or KindUnknown.
func KindOf(err error) Kind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Error attaches a Kind to a cause.
type Error struct {
	K   Kind
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() Kind { return e.K }

// Sentinel returns an error with message msg classified as k. It is meant
// for package level error values compared with errors.Is.
func Sentinel(k Kind, msg string) error {
	return &Error{K: k, Err: errors.New(msg)}
}
