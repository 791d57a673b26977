package engine

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/broker"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/workflow"
)

var defaultEngine *Engine = New(Config{})

func RegisterMiddleware(mw echo.MiddlewareFunc) {
	defaultEngine.RegisterMiddleware(mw)
}

func RegisterStoreProvider(name string, provider store.Provider) {
	defaultEngine.RegisterStoreProvider(name, provider)
}

func RegisterBrokerProvider(name string, provider broker.Provider) {
	defaultEngine.RegisterBrokerProvider(name, provider)
}

func OnStarted(h OnStartedHandler) {
	defaultEngine.OnStarted(h)
}

func NewWorkflow(ctx context.Context, category mountflow.Category) (*workflow.Controller, error) {
	return defaultEngine.NewWorkflow(ctx, category)
}

func Store() *store.Store {
	return defaultEngine.Store()
}

func Broker() broker.Broker {
	return defaultEngine.Broker()
}

func Start() error {
	return defaultEngine.Start()
}

func Terminate() error {
	return defaultEngine.Terminate()
}

func SetMode(mode Mode) {
	defaultEngine.SetMode(mode)
}

func Run() error {
	return defaultEngine.Run()
}
