package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/broker"
)

var transitions = map[string]map[Event]string{
	StateIdle: {
		EventContinue:          StateEnable,
		EventEnableReplication: StateReplication,
	},
	StateEnable: {
		EventContinue: StateConfig,
	},
	StateConfig: {
		EventContinue: StateComplete,
	},
	StateReplication: {
		EventContinue: StateComplete,
	},
}

// Tutorial is a feature machine walking a user through enabling a
// backend. Every transition is published on the wizard.transition
// topic when a broker is given.
type Tutorial struct {
	mu             sync.RWMutex
	featureState   string
	componentState string
	broker         broker.Broker
}

func NewTutorial(b broker.Broker) *Tutorial {
	return &Tutorial{
		featureState: StateIdle,
		broker:       b,
	}
}

func (t *Tutorial) FeatureState() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.featureState
}

func (t *Tutorial) ComponentState() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.componentState
}

func (t *Tutorial) SetComponentState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.componentState = state
}

func (t *Tutorial) TransitionFeatureMachine(ctx context.Context, state string, event Event, typeToken string) {
	next, ok := nextState(state, event)
	if !ok {
		log.Debug().
			Str("state", state).
			Str("event", string(event)).
			Msg("ignoring wizard event")
		return
	}
	t.mu.Lock()
	t.featureState = next
	t.mu.Unlock()
	log.Debug().
		Str("from", state).
		Str("to", next).
		Str("event", string(event)).
		Str("type", typeToken).
		Msg("wizard transition")
	if t.broker == nil {
		return
	}
	tr := &mountflow.WizardTransition{
		From:      state,
		To:        next,
		Event:     string(event),
		TypeToken: typeToken,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.broker.PublishEvent(ctx, broker.TopicWizardTransition, tr); err != nil {
		log.Error().Err(err).Msg("error publishing wizard transition")
	}
}

func nextState(state string, event Event) (string, bool) {
	if event == EventReset {
		return StateIdle, true
	}
	next, ok := transitions[state][event]
	return next, ok
}
