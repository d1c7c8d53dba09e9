// Package signalbus fans out the purely-observable runner events named in
// §4.6: PreProtocolRun, PostProtocolRun, PreWorkflowRun, PostWorkflowRun,
// WorkflowRunError, and ProtocolRunError. Listeners never affect control
// flow: a Listener has no way to return an error to the runner. Emit calls
// each listener synchronously, so the runner waits for every listener to
// return before it continues.
package signalbus

import (
	"github.com/savannahghi/idrclient/internal/etlmodel"
)

// Kind names one of the six signal types the runner emits.
type Kind int8

const (
	PreProtocolRun Kind = iota
	PostProtocolRun
	PreWorkflowRun
	PostWorkflowRun
	WorkflowRunError
	ProtocolRunError
)

func (k Kind) String() string {
	switch k {
	case PreProtocolRun:
		return "PreProtocolRun"
	case PostProtocolRun:
		return "PostProtocolRun"
	case PreWorkflowRun:
		return "PreWorkflowRun"
	case PostWorkflowRun:
		return "PostWorkflowRun"
	case WorkflowRunError:
		return "WorkflowRunError"
	case ProtocolRunError:
		return "ProtocolRunError"
	default:
		return "Unknown"
	}
}

// Signal is one emitted event. ProtocolID is always set; DrawMeta and Err
// are populated only for the Kinds that carry them (PreWorkflowRun/
// PostWorkflowRun/WorkflowRunError carry DrawMeta, WorkflowRunError/
// ProtocolRunError carry Err).
type Signal struct {
	Kind       Kind
	ProtocolID string
	DrawMeta   *etlmodel.DrawMeta
	Err        error
}

// Listener receives emitted signals. Implementations must not block for long
// and must never panic; Bus.Emit does not recover listener panics.
type Listener func(Signal)

// Bus fans a Signal out to every registered Listener, synchronously and in
// registration order. It takes no locks, so a listener is free to call back
// into the bus (e.g. to subscribe another listener) without deadlocking on
// the next Emit.
type Bus struct {
	listeners []Listener
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers l to receive every future Emit call.
func (b *Bus) Subscribe(l Listener) {
	b.listeners = append(b.listeners, l)
}

// Emit delivers sig to every subscribed listener, in registration order.
func (b *Bus) Emit(sig Signal) {
	for _, l := range b.listeners {
		l(sig)
	}
}

// ListenerFactory builds a Listener from process configuration, returning
// (nil, nil) when its driver's settings leave it unconfigured (e.g. an
// optional alerting sink with no endpoint set).
type ListenerFactory func() (Listener, error)

// defaultListenerFactories is the process-wide set driver packages
// self-register into from their own init(), mirroring registry.Default.
var defaultListenerFactories []ListenerFactory //nolint:gochecknoglobals

// RegisterListenerFactory appends f to the process-wide set.
func RegisterListenerFactory(f ListenerFactory) {
	defaultListenerFactories = append(defaultListenerFactories, f)
}

// DefaultListenerFactories returns the process-wide set.
func DefaultListenerFactories() []ListenerFactory {
	return defaultListenerFactories
}
