package exchange

import (
	"time"

	"github.com/chris-alexander-pop/timingwheel/wheel"
)

// ModKind distinguishes the two message shapes carried by a mod-queue.
type ModKind uint8

const (
	ModMove ModKind = iota
	ModCancel
)

// ModMessage is the payload type for the plain MPMC mod-queue: either a
// request to re-task a live timeout (Move) or to unlink and free one
// (Cancel). Task is unused for Cancel messages.
type ModMessage struct {
	Kind  ModKind
	Token wheel.Token
	When  time.Time
	Task  wheel.TaskNotify
}
