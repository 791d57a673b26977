// Package wizard holds the multi-step wizard the mount workflow
// reports its progress to.
package wizard

import "context"

type Event string

const (
	EventContinue          Event = "CONTINUE"
	EventReset             Event = "RESET"
	EventEnableReplication Event = "ENABLEREPLICATION"
)

const (
	StateIdle        = "idle"
	StateEnable      = "enable"
	StateConfig      = "config"
	StateComplete    = "complete"
	StateReplication = "replication"
)

// Machine is the wizard as seen by the mount workflow.
type Machine interface {
	// FeatureState returns the current state of the feature machine.
	FeatureState() string
	// SetComponentState records the state of the component driving
	// the wizard, e.g. the backend type currently selected.
	SetComponentState(state string)
	// TransitionFeatureMachine moves the feature machine from state
	// on event. typeToken identifies the backend type involved.
	TransitionFeatureMachine(ctx context.Context, state string, event Event, typeToken string)
}
