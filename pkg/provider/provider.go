// Package provider defines the generation-backend contract and the
// structured-reply parsing shared by its implementations.
package provider

import (
	"context"

	"concierge/pkg/prompt"
)

// Generator produces the user-facing reply text for a composed request.
type Generator interface {
	// Generate issues one generation call and returns the reply message.
	// Transport failures and unsalvageable output both surface as errors;
	// the caller decides the user-visible fallback.
	Generate(ctx context.Context, req prompt.Request) (string, error)
}
