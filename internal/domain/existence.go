package domain

import "fmt"

// LookupState is the outcome of an artifact existence check.
type LookupState int

const (
	NotFound LookupState = iota
	Found
	QueryFailed
)

func (s LookupState) String() string {
	switch s {
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	case QueryFailed:
		return "query_failed"
	default:
		return fmt.Sprintf("lookup_state(%d)", int(s))
	}
}

// Existence reports whether an artifact key is already stored.
// Err is set only when State is QueryFailed.
type Existence struct {
	State LookupState
	Err   error
}

func Exists() Existence {
	return Existence{State: Found}
}

func Missing() Existence {
	return Existence{State: NotFound}
}

func LookupFailed(err error) Existence {
	return Existence{State: QueryFailed, Err: err}
}
