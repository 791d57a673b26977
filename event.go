package mountflow

import "time"

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationDanger  NotificationLevel = "danger"
)

// Notification is a user-facing message emitted by the workflow.
type Notification struct {
	ID        string            `json:"id,omitempty"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
}

// WizardTransition records a step of the guided setup tutorial.
type WizardTransition struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Event     string    `json:"event"`
	TypeToken string    `json:"typeToken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MountEvent is published whenever a mount or its
// configuration is persisted.
type MountEvent struct {
	Mount     *Mount         `json:"mount"`
	Config    *BackendConfig `json:"config,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
