// Package store defines the identity and conversation-history contract.
//
// Two backends implement it: a Supabase PostgREST client for deployment
// and a SQLite store for local chat mode and tests.
package store

import (
	"context"
	"errors"
)

// Role identifies which side of the conversation wrote a history entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ErrUserNotFound reports that a sender has no provisioned profile row.
var ErrUserNotFound = errors.New("user not found")

// Entry is one turn of a persisted conversation.
type Entry struct {
	Sender  Role
	Message string
}

// Store maps sender identities to retrieval namespaces and keeps a
// bounded, append-only conversation transcript per sender.
type Store interface {
	// LookupNamespace returns the retrieval namespace provisioned for a
	// sender, or ErrUserNotFound when no profile row exists.
	LookupNamespace(ctx context.Context, phoneNumber string) (string, error)

	// RecentHistory returns up to limit most-recent entries for a sender,
	// ordered oldest-first. An empty slice is a valid result.
	RecentHistory(ctx context.Context, phoneNumber string, limit int) ([]Entry, error)

	// AppendHistory inserts one entry and then trims the sender's
	// transcript to the store's history limit, deleting only the oldest
	// excess rows. Trimming is best-effort: a failure after the insert
	// leaves extra rows behind but never reorders the remainder.
	AppendHistory(ctx context.Context, phoneNumber string, sender Role, message string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
