package sop

import "github.com/google/uuid"

// LockToken is a process-unique random token. The manager package mints
// one per Manager instance so that logs and diagnostics can tell apart
// multiple instances sharing one group tag.
type LockToken = uuid.UUID

// NewLockToken mints a new random LockToken.
func NewLockToken() LockToken {
	return uuid.New()
}
