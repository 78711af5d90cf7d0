// Package auth carries the caller identity through service calls.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller of a pipeline operation.
type Principal struct {
	RequesterID  uuid.UUID `json:"requester_id"`
	DealershipID uuid.UUID `json:"dealership_id"`
}

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// CanAccess reports whether p may act on records owned by dealershipID.
func (p Principal) CanAccess(dealershipID uuid.UUID) bool {
	return p.DealershipID != uuid.Nil && p.DealershipID == dealershipID
}
