package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

type stubConnectService struct {
	beginFn      func(ctx context.Context, req core.BeginConnectRequest) (core.BeginConnectResponse, error)
	completeFn   func(ctx context.Context, req core.CompleteCallbackRequest) (core.CallbackCompletion, error)
	disconnectFn func(ctx context.Context, req core.DisconnectRequest) (core.DisconnectResult, error)
}

func (s stubConnectService) BeginConnect(ctx context.Context, req core.BeginConnectRequest) (core.BeginConnectResponse, error) {
	if s.beginFn == nil {
		return core.BeginConnectResponse{}, fmt.Errorf("unexpected BeginConnect call")
	}
	return s.beginFn(ctx, req)
}

func (s stubConnectService) CompleteCallback(ctx context.Context, req core.CompleteCallbackRequest) (core.CallbackCompletion, error) {
	if s.completeFn == nil {
		return core.CallbackCompletion{}, fmt.Errorf("unexpected CompleteCallback call")
	}
	return s.completeFn(ctx, req)
}

func (s stubConnectService) Disconnect(ctx context.Context, req core.DisconnectRequest) (core.DisconnectResult, error) {
	if s.disconnectFn == nil {
		return core.DisconnectResult{}, fmt.Errorf("unexpected Disconnect call")
	}
	return s.disconnectFn(ctx, req)
}

func TestBeginConnectCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.BeginConnectResponse{URL: "https://example.com/auth", State: "st"}
	called := false

	svc := stubConnectService{
		beginFn: func(_ context.Context, req core.BeginConnectRequest) (core.BeginConnectResponse, error) {
			called = true
			if req.Integration != core.IntegrationGitHub {
				t.Fatalf("expected github, got %q", req.Integration)
			}
			return expected, nil
		},
	}

	cmd := NewBeginConnectCommand(svc)
	collector := gocmd.NewResult[core.BeginConnectResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, BeginConnectMessage{Request: core.BeginConnectRequest{
		Integration: core.IntegrationGitHub,
		UserID:      "usr_1",
	}})
	if err != nil {
		t.Fatalf("execute begin connect: %v", err)
	}
	if !called {
		t.Fatalf("expected service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.URL != expected.URL || result.State != expected.State {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestCompleteCallbackCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := stubConnectService{
		completeFn: func(_ context.Context, req core.CompleteCallbackRequest) (core.CallbackCompletion, error) {
			if req.Code != "code-abc" || req.State != "st" {
				t.Fatalf("unexpected callback payload: %#v", req)
			}
			return core.CallbackCompletion{Token: core.TokenResponse{AccessToken: "tok"}}, nil
		},
	}

	cmd := NewCompleteCallbackCommand(svc)
	collector := gocmd.NewResult[core.CallbackCompletion]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CompleteCallbackMessage{Request: core.CompleteCallbackRequest{
		Integration: core.IntegrationSlack,
		Code:        "code-abc",
		State:       "st",
	}})
	if err != nil {
		t.Fatalf("execute complete callback: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Token.AccessToken != "tok" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestDisconnectCommand_ExecuteDelegates(t *testing.T) {
	called := false
	svc := stubConnectService{
		disconnectFn: func(_ context.Context, req core.DisconnectRequest) (core.DisconnectResult, error) {
			called = true
			if req.ConnectionID != "conn_1" {
				t.Fatalf("unexpected disconnect payload: %#v", req)
			}
			return core.DisconnectResult{Revocation: core.RevocationResult{Revoked: true}}, nil
		},
	}

	cmd := NewDisconnectCommand(svc)
	if err := cmd.Execute(context.Background(), DisconnectMessage{Request: core.DisconnectRequest{
		Integration:  core.IntegrationDropbox,
		ConnectionID: "conn_1",
	}}); err != nil {
		t.Fatalf("execute disconnect: %v", err)
	}
	if !called {
		t.Fatalf("expected disconnect invocation")
	}
}

func TestMessages_ValidateReturnRichErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"begin connect", (BeginConnectMessage{}).Validate()},
		{"complete callback", (CompleteCallbackMessage{}).Validate()},
		{"disconnect", (DisconnectMessage{}).Validate()},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		var rich *goerrors.Error
		if !goerrors.As(tc.err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", tc.name, tc.err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("%s: expected validation category, got %q", tc.name, rich.Category)
		}
		if rich.TextCode != core.IntegrationsErrorBadInput {
			t.Fatalf("%s: expected %q text code, got %q", tc.name, core.IntegrationsErrorBadInput, rich.TextCode)
		}
	}
}

func TestCommands_NilServiceReturnsDependencyError(t *testing.T) {
	var begin *BeginConnectCommand
	if err := begin.Execute(context.Background(), BeginConnectMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}

	var disconnect *DisconnectCommand
	err := disconnect.Execute(context.Background(), DisconnectMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
