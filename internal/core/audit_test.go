package core

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		action AuditAction
		want   AuditSeverity
	}{
		{ActionDelete, SeverityCritical},
		{ActionDeactivate, SeverityHigh},
		{ActionStockAdjust, SeverityHigh},
		{ActionPasswordChange, SeverityHigh},
		{ActionLogin, SeverityLow},
		{ActionCreate, SeverityMedium},
		{ActionUpdate, SeverityMedium},
		{ActionStatusChange, SeverityMedium},
	}
	for _, tt := range tests {
		if got := determineSeverity(tt.action); got != tt.want {
			t.Errorf("determineSeverity(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if GetIPAddressFromContext(ctx) != "" || GetUserAgentFromContext(ctx) != "" {
		t.Error("expected empty values on bare context")
	}
	if _, ok := ActorFromContext(ctx); ok {
		t.Error("expected no actor on bare context")
	}

	ctx = ContextWithIPAddress(ctx, "10.0.0.1")
	ctx = ContextWithUserAgent(ctx, "curl/8")
	ctx = ContextWithActor(ctx, Actor{ID: 1, Role: RoleUser})

	if GetIPAddressFromContext(ctx) != "10.0.0.1" {
		t.Error("ip not stored")
	}
	if GetUserAgentFromContext(ctx) != "curl/8" {
		t.Error("user agent not stored")
	}
	if a, ok := ActorFromContext(ctx); !ok || a.IsAdmin() {
		t.Errorf("actor = %+v, %v", a, ok)
	}
}

// nameArg matches the *string user_name argument.
type nameArg string

func (n nameArg) Match(v interface{}) bool {
	p, ok := v.(*string)
	return ok && p != nil && *p == string(n)
}

func TestLogAudit_UserID(t *testing.T) {
	seven := 7
	tests := []struct {
		name     string
		actor    Actor
		wantUser intArg
	}{
		{"account", Actor{ID: 7, Username: "ana", Role: RoleUser}, intArg{want: &seven}},
		{"api key has no account", Actor{Username: "api", Role: RoleAdmin}, intArg{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockService(t)
			mock.ExpectExec("INSERT INTO audit_log").
				WithArgs(pgxmock.AnyArg(), string(ActionCreate), string(SeverityMedium), "marcas", "3",
					tt.wantUser, nameArg(tt.actor.Username), "10.0.0.1", nil, pgxmock.AnyArg(), fixedNow).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))

			ctx := ContextWithIPAddress(ContextWithActor(context.Background(), tt.actor), "10.0.0.1")
			s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "marcas", RowKey: 3})
		})
	}
}

func TestLogAudit_FailureIsSwallowed(t *testing.T) {
	s, mock := newMockService(t)
	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errors.New("disk full"))

	// Must not panic or block; the entry is only logged.
	s.LogAudit(context.Background(), AuditLogParams{Action: ActionDelete, TableKey: "marcas", RowKey: 3})
}
