package integrations

import (
	"fmt"

	"github.com/goliatone/go-integrations/command"
)

// Commands bundles the dispatcher-facing handlers for the connection
// lifecycle.
type Commands struct {
	BeginConnect     *command.BeginConnectCommand
	CompleteCallback *command.CompleteCallbackCommand
	Disconnect       *command.DisconnectCommand
}

type Facade struct {
	service  command.ConnectService
	commands Commands
}

func NewFacade(service command.ConnectService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: connect service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			BeginConnect:     command.NewBeginConnectCommand(service),
			CompleteCallback: command.NewCompleteCallbackCommand(service),
			Disconnect:       command.NewDisconnectCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() command.ConnectService {
	if f == nil {
		return nil
	}
	return f.service
}
