package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

type stubFlowService struct {
	authorizeFn func(context.Context, core.AuthorizeRequest) (core.AuthorizeResponse, error)
	callbackFn  func(context.Context, core.CallbackRequest) (core.CallbackResponse, error)
}

func (s stubFlowService) Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	if s.authorizeFn == nil {
		return core.AuthorizeResponse{}, nil
	}
	return s.authorizeFn(ctx, req)
}

func (s stubFlowService) Callback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error) {
	if s.callbackFn == nil {
		return core.CallbackResponse{}, nil
	}
	return s.callbackFn(ctx, req)
}

func TestAuthorizeCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.AuthorizeResponse{AuthURL: "https://app.hubspot.com/oauth/authorize?state=s", State: "s"}
	called := false
	svc := stubFlowService{
		authorizeFn: func(_ context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
			called = true
			if req.Provider != "hubspot" || req.UserID != "u1" || req.OrganizationID != "o1" {
				t.Fatalf("unexpected authorize request: %#v", req)
			}
			return expected, nil
		},
	}

	collector := gocmd.NewResult[core.AuthorizeResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewAuthorizeCommand(svc).Execute(ctx, AuthorizeMessage{Request: core.AuthorizeRequest{
		Provider:       "hubspot",
		UserID:         "u1",
		OrganizationID: "o1",
	}})
	if err != nil {
		t.Fatalf("execute authorize: %v", err)
	}
	if !called {
		t.Fatalf("expected authorize invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result != expected {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestCallbackCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := stubFlowService{
		callbackFn: func(_ context.Context, req core.CallbackRequest) (core.CallbackResponse, error) {
			if req.Provider != "notion" || req.Code != "c1" || req.State != "notion-u1.abc" {
				t.Fatalf("unexpected callback request: %#v", req)
			}
			return core.CallbackResponse{Success: true, Credentials: map[string]any{"access_token": "at"}}, nil
		},
	}

	collector := gocmd.NewResult[core.CallbackResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCallbackCommand(svc).Execute(ctx, CallbackMessage{Request: core.CallbackRequest{
		Provider: "notion",
		Code:     "c1",
		State:    "notion-u1.abc",
	}})
	if err != nil {
		t.Fatalf("execute callback: %v", err)
	}
	result, ok := collector.Load()
	if !ok || !result.Success || result.Credentials["access_token"] != "at" {
		t.Fatalf("unexpected stored callback result: %#v (stored=%t)", result, ok)
	}
}

func TestCommands_PropagateServiceErrorsWithoutStoring(t *testing.T) {
	failure := errors.New("boom")
	svc := stubFlowService{
		callbackFn: func(context.Context, core.CallbackRequest) (core.CallbackResponse, error) {
			return core.CallbackResponse{}, failure
		},
	}
	collector := gocmd.NewResult[core.CallbackResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCallbackCommand(svc).Execute(ctx, CallbackMessage{})
	if !errors.Is(err, failure) {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no stored result on failure")
	}
}

func TestCommands_ExecuteWithoutCollector(t *testing.T) {
	cmd := NewAuthorizeCommand(stubFlowService{})
	if err := cmd.Execute(context.Background(), AuthorizeMessage{}); err != nil {
		t.Fatalf("expected execute without collector to succeed, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
		ok   bool
	}{
		{name: "authorize ok", msg: AuthorizeMessage{Request: core.AuthorizeRequest{Provider: "hubspot", UserID: "u"}}, ok: true},
		{name: "authorize missing user", msg: AuthorizeMessage{Request: core.AuthorizeRequest{Provider: "hubspot"}}},
		{name: "callback ok", msg: CallbackMessage{Request: core.CallbackRequest{Provider: "notion", Code: "c", State: "s"}}, ok: true},
		{name: "callback missing code", msg: CallbackMessage{Request: core.CallbackRequest{Provider: "notion", State: "s"}}},
		{name: "callback missing state", msg: CallbackMessage{Request: core.CallbackRequest{Provider: "notion", Code: "c"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid message, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestMessages_TypeNames(t *testing.T) {
	if (AuthorizeMessage{}).Type() != TypeAuthorize || (CallbackMessage{}).Type() != TypeCallback {
		t.Fatalf("unexpected message types")
	}
}
