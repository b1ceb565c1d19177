package ledger

import (
	"errors"
	"fmt"

	"agrogestion/internal/store"
)

// State of a List's cached set.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type FailureKind int

const (
	// Retryable failures are transport problems: the same call may succeed later.
	Retryable FailureKind = iota + 1
	// Terminal failures are rejections: the request itself is wrong.
	Terminal
)

func (k FailureKind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Failure describes why the last operation on a List did not succeed.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ErrNoScope is returned through a Failure when Refresh runs before any Load.
var ErrNoScope = errors.New("no owner loaded")

func classify(op string, err error) *Failure {
	kind := Terminal
	if store.IsTransient(err) {
		kind = Retryable
	}
	return &Failure{Kind: kind, Op: op, Err: err}
}
