package domain

import (
	"errors"
	"time"
)

// AuditAction is a type-safe action identifier for the audit log.
type AuditAction string

const (
	ActionLogin        AuditAction = "LOGIN"
	ActionLogout       AuditAction = "LOGOUT"
	ActionTenantCreate AuditAction = "TENANT_CREATED"
	ActionTenantUpdate AuditAction = "TENANT_UPDATED"
	ActionTenantDelete AuditAction = "TENANT_DELETED"
	ActionSync         AuditAction = "SYNC_TRIGGERED"
	ActionTestConn     AuditAction = "CONNECTION_TEST"
	ActionInfo         AuditAction = "INFO"
)

var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingUser   = errors.New("user identification is required for auditing")
)

// AuditLog records a critical system action: who did what to which tenant.
type AuditLog struct {
	ID        uint        `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Action    AuditAction `json:"action"`
	Target    string      `json:"target"`
	Details   string      `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog is the designated factory for valid audit entries.
func NewAuditLog(userID, username string, action AuditAction, target, details string) (*AuditLog, error) {
	if userID == "" && username == "" {
		return nil, ErrMissingUser
	}
	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}
	return &AuditLog{
		UserID:    userID,
		Username:  username,
		Action:    action,
		Target:    target,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}, nil
}

func isValidAction(action AuditAction) bool {
	switch action {
	case ActionLogin, ActionLogout, ActionTenantCreate, ActionTenantUpdate,
		ActionTenantDelete, ActionSync, ActionTestConn, ActionInfo:
		return true
	}
	return false
}
