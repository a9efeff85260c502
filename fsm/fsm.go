package fsm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEventRejected is the error returned when the state machine cannot
	// process an event in the state that it is in.
	ErrEventRejected = errors.New("event rejected")

	// ErrConfig is the error returned when the transition table doesn't
	// know the current or the next state.
	ErrConfig = errors.New("state machine misconfigured")
)

const (
	// NoOp represents a no-op event.
	NoOp EventType = "NoOp"
)

// StateType represents an extensible state type in the state machine.
type StateType string

// EventType represents an extensible event type in the state machine.
type EventType string

// EventContext represents the context to be passed to the action
// implementation.
type EventContext interface{}

// Action represents the action to be executed in a given state. The returned
// event is fed back into the machine unless it is NoOp.
type Action func(eventCtx EventContext) EventType

// Transitions represents a mapping of events and states.
type Transitions map[EventType]StateType

// State binds a state with an action and a set of events it can handle.
type State struct {
	// Action is the action to be executed when the state is entered. A
	// nil action behaves like NoOpAction.
	Action Action

	// Transitions is a mapping of events and states. Final states have
	// none.
	Transitions Transitions
}

// States represents a mapping of states and their implementations.
type States map[StateType]State

// Notification is sent to observers after every transition.
type Notification struct {
	PreviousState StateType
	NextState     StateType
	Event         EventType
}

// Observer is an interface that can be implemented by types that want to
// observe the state machine.
type Observer interface {
	Notify(Notification)
}

// StateMachine represents the state machine.
type StateMachine struct {
	// States is the transition table of the machine.
	States States

	// mutex ensures that only 1 event is processed by the state machine at
	// any given time.
	mutex sync.Mutex

	previous StateType
	current  StateType

	observers     []Observer
	observerMutex sync.Mutex
}

// NewStateMachineWithState creates a new state machine that starts in the
// given state. Persisted entities use this to resume where they left off.
func NewStateMachineWithState(states States,
	current StateType) *StateMachine {

	return &StateMachine{
		States:  states,
		current: current,
	}
}

// CurrentState returns the state the machine is in.
func (s *StateMachine) CurrentState() StateType {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.current
}

// NextState returns the state the event would move the machine to without
// moving it.
func (s *StateMachine) NextState(event EventType) (StateType, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.nextState(event)
}

func (s *StateMachine) nextState(event EventType) (StateType, error) {
	state, ok := s.States[s.current]
	if !ok {
		return "", fmt.Errorf("%w: state %v not found", ErrConfig,
			s.current)
	}

	next, ok := state.Transitions[event]
	if !ok {
		return "", fmt.Errorf("%w: %v in state %v", ErrEventRejected,
			event, s.current)
	}

	if _, ok := s.States[next]; !ok {
		return "", fmt.Errorf("%w: next state %v not found", ErrConfig,
			next)
	}

	return next, nil
}

// SendEvent sends an event to the state machine. It returns an error if the
// event cannot be processed in the current state. Actions run in the new
// state and the events they return are processed until one returns NoOp.
func (s *StateMachine) SendEvent(event EventType, eventCtx EventContext) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.States == nil {
		return fmt.Errorf("%w: no states", ErrConfig)
	}

	for {
		next, err := s.nextState(event)
		if err != nil {
			return err
		}

		s.previous = s.current
		s.current = next

		log.Tracef("Transition %v -> %v on %v", s.previous, s.current,
			event)

		s.notify(Notification{
			PreviousState: s.previous,
			NextState:     s.current,
			Event:         event,
		})

		action := s.States[next].Action
		if action == nil {
			return nil
		}

		event = action(eventCtx)
		if event == NoOp {
			return nil
		}
	}
}

func (s *StateMachine) notify(n Notification) {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	for _, observer := range s.observers {
		observer.Notify(n)
	}
}

// RegisterObserver registers an observer with the state machine.
func (s *StateMachine) RegisterObserver(observer Observer) {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	if observer != nil {
		s.observers = append(s.observers, observer)
	}
}

// RemoveObserver removes an observer from the state machine. It returns true
// if the observer was removed, false otherwise.
func (s *StateMachine) RemoveObserver(observer Observer) bool {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()

	for i, o := range s.observers {
		if o == observer {
			s.observers = append(
				s.observers[:i], s.observers[i+1:]...,
			)
			return true
		}
	}

	return false
}

// NoOpAction is a no-op action that can be used by states that don't need to
// execute any action.
func NoOpAction(_ EventContext) EventType {
	return NoOp
}
