package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginConnectMessage]     = (*BeginConnectCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]       = (*DisconnectCommand)(nil)
)
