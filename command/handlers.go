package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

// ConnectService is the mutating surface the commands drive; *core.Service
// satisfies it.
type ConnectService interface {
	BeginConnect(ctx context.Context, req core.BeginConnectRequest) (core.BeginConnectResponse, error)
	CompleteCallback(ctx context.Context, req core.CompleteCallbackRequest) (core.CallbackCompletion, error)
	Disconnect(ctx context.Context, req core.DisconnectRequest) (core.DisconnectResult, error)
}

type BeginConnectCommand struct {
	service ConnectService
}

func NewBeginConnectCommand(service ConnectService) *BeginConnectCommand {
	return &BeginConnectCommand{service: service}
}

func (c *BeginConnectCommand) Execute(ctx context.Context, msg BeginConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.BeginConnect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service ConnectService
}

func NewCompleteCallbackCommand(service ConnectService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service ConnectService
}

func NewDisconnectCommand(service ConnectService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Disconnect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
