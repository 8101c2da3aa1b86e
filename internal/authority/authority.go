// Package authority mints and validates proof that a named human clinician
// authorized an action for a given tenant at a given time.
//
// A Context is only valid if it came out of a Factory. The factory attaches a
// package-private mark that no other package can construct or copy into a
// hand-built value, so a forged struct with plausible fields is rejected even
// when every visible field looks right. Contexts are created once per inbound
// authorized request, never persisted, and discarded when the call completes.
package authority

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/requestcontext"
)

// mintMark is the authenticity marker. Only this package can hold a pointer
// to the genuine instance; an unmarked Context fails Valid regardless of its
// visible fields.
type mintMark struct{ _ byte }

var genuine = &mintMark{}

// Context is the unforgeable attribution token threaded explicitly through
// every write operation. Fields are unexported so a literal built outside
// this package is always invalid.
type Context struct {
	clinicianID   domain.ClinicianID
	tenantID      domain.TenantID
	authorizedAt  time.Time
	correlationID string
	mark          *mintMark
}

// ClinicianID returns the authorizing clinician.
func (c Context) ClinicianID() domain.ClinicianID { return c.clinicianID }

// TenantID returns the tenant the authorization is scoped to.
func (c Context) TenantID() domain.TenantID { return c.tenantID }

// AuthorizedAt returns when the factory stamped the authorization.
func (c Context) AuthorizedAt() time.Time { return c.authorizedAt }

// CorrelationID returns the tracing correlation id.
func (c Context) CorrelationID() string { return c.correlationID }

// Input carries the raw identity fields a transport layer extracted for the
// factory. How the transport obtained them is its own concern.
type Input struct {
	ClinicianID   domain.ClinicianID
	TenantID      domain.TenantID
	CorrelationID string
}

// Factory mints authority contexts. It is stateless; Mint is a pure function
// of its input plus the request clock.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Mint stamps the request time and the authenticity marker onto the given
// identity fields. A missing correlation id is filled from the request id,
// then the active trace id, then a fresh UUID, so every minted context is
// traceable.
func (f *Factory) Mint(ctx context.Context, in Input) (Context, error) {
	if in.ClinicianID.IsNil() {
		return Context{}, dErrors.New(dErrors.CodeValidation, "clinician id is required")
	}
	if in.TenantID.IsNil() {
		return Context{}, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}

	correlationID := in.CorrelationID
	if correlationID == "" {
		correlationID = requestcontext.RequestID(ctx)
	}
	if correlationID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			correlationID = sc.TraceID().String()
		}
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return Context{
		clinicianID:   in.ClinicianID,
		tenantID:      in.TenantID,
		authorizedAt:  requestcontext.Now(ctx),
		correlationID: correlationID,
		mark:          genuine,
	}, nil
}

// Valid reports whether c carries the genuine marker and all four fields.
func Valid(c *Context) bool {
	if c == nil {
		return false
	}
	if c.mark != genuine {
		return false
	}
	return !c.clinicianID.IsNil() &&
		!c.tenantID.IsNil() &&
		!c.authorizedAt.IsZero() &&
		c.correlationID != ""
}

// Require is the fail-closed gate every write model calls before touching a
// store. A nil context is AUTHORITY_MISSING; a present but unminted or
// incomplete one is AUTHORITY_INVALID.
func Require(c *Context) error {
	if c == nil {
		return dErrors.New(dErrors.CodeAuthorityMissing, "authority context is required")
	}
	if !Valid(c) {
		return dErrors.New(dErrors.CodeAuthorityInvalid, "authority context was not minted by the factory")
	}
	return nil
}
