package domain

import (
	"errors"
	"time"
)

// AuditAction identifies an audited operation.
type AuditAction string

const (
	ActionLogin         AuditAction = "LOGIN"
	ActionLogout        AuditAction = "LOGOUT"
	ActionConnect       AuditAction = "SERVICE_CONNECT"
	ActionDisconnect    AuditAction = "SERVICE_DISCONNECT"
	ActionRemove        AuditAction = "SERVICE_REMOVE"
	ActionPassphraseSet AuditAction = "PASSPHRASE_SET"
)

var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingUser   = errors.New("user identification is required for auditing")
)

// AuditLog is a record of a sensitive operation on a service.
type AuditLog struct {
	ID        uint        `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Action    AuditAction `json:"action"`
	Target    string      `json:"target"` // service identifier
	Details   string      `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog builds a validated audit entry.
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
	case ActionLogin, ActionLogout, ActionConnect, ActionDisconnect,
		ActionRemove, ActionPassphraseSet:
		return true
	}
	return false
}
