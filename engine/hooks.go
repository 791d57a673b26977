package engine

// OnStartedHandler is called once the engine has started.
// A non-nil error aborts the startup.
type OnStartedHandler func() error
