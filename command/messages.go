package command

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeBeginConnect     = "integrations.command.connect.begin"
	TypeCompleteCallback = "integrations.command.callback.complete"
	TypeDisconnect       = "integrations.command.disconnect"
)

type BeginConnectMessage struct {
	Request core.BeginConnectRequest
}

func (BeginConnectMessage) Type() string { return TypeBeginConnect }

func (m BeginConnectMessage) Validate() error {
	if !m.Request.Integration.Valid() {
		return commandValidationError("integration", "a supported integration type is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CompleteCallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if !m.Request.Integration.Valid() {
		return commandValidationError("integration", "a supported integration type is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state token is required")
	}
	return nil
}

type DisconnectMessage struct {
	Request core.DisconnectRequest
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if !m.Request.Integration.Valid() {
		return commandValidationError("integration", "a supported integration type is required")
	}
	if strings.TrimSpace(m.Request.ConnectionID) == "" && strings.TrimSpace(m.Request.AccessToken) == "" {
		return commandValidationError("connection_id", "a connection id or access token is required")
	}
	return nil
}
