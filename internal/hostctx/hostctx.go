// Package hostctx supplies the runtime environment details attached to
// every log record: request identity, execution mode flags, the acting
// user and the tenant scope.
package hostctx

import (
	"context"

	"github.com/google/uuid"
)

// HostContext is one snapshot of the host environment. Nil fields are
// unknown to the host and are recorded as null.
type HostContext struct {
	RequestURI    *string
	RequestID     *string
	DoingCron     *bool
	DoingAjax     *bool
	DoingAutosave *bool
	IsAdmin       *bool
	DoingREST     *bool
	UserID        *int64
	ScopeSwitched *bool
	SiteID        *int64
	NetworkID     *int64
	IsSSL         *bool
	Environment   *string
}

// Keys lists the extra keys owned by host enrichment, in output order.
var Keys = []string{
	"request_uri",
	"request_id",
	"doing_cron",
	"doing_ajax",
	"doing_autosave",
	"is_admin",
	"doing_rest",
	"user_id",
	"ms_switched",
	"site_id",
	"network_id",
	"is_ssl",
	"environment",
}

// Fields renders the snapshot as extra entries. Every key in Keys is present.
func (h HostContext) Fields() map[string]any {
	return map[string]any{
		"request_uri":    deref(h.RequestURI),
		"request_id":     deref(h.RequestID),
		"doing_cron":     deref(h.DoingCron),
		"doing_ajax":     deref(h.DoingAjax),
		"doing_autosave": deref(h.DoingAutosave),
		"is_admin":       deref(h.IsAdmin),
		"doing_rest":     deref(h.DoingREST),
		"user_id":        deref(h.UserID),
		"ms_switched":    deref(h.ScopeSwitched),
		"site_id":        deref(h.SiteID),
		"network_id":     deref(h.NetworkID),
		"is_ssl":         deref(h.IsSSL),
		"environment":    deref(h.Environment),
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// merge overlays the set fields of o onto h.
func (h HostContext) merge(o HostContext) HostContext {
	pick(&h.RequestURI, o.RequestURI)
	pick(&h.RequestID, o.RequestID)
	pick(&h.DoingCron, o.DoingCron)
	pick(&h.DoingAjax, o.DoingAjax)
	pick(&h.DoingAutosave, o.DoingAutosave)
	pick(&h.IsAdmin, o.IsAdmin)
	pick(&h.DoingREST, o.DoingREST)
	pick(&h.UserID, o.UserID)
	pick(&h.ScopeSwitched, o.ScopeSwitched)
	pick(&h.SiteID, o.SiteID)
	pick(&h.NetworkID, o.NetworkID)
	pick(&h.IsSSL, o.IsSSL)
	pick(&h.Environment, o.Environment)
	return h
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Provider returns the host context for the current call.
type Provider interface {
	HostContext(ctx context.Context) HostContext
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) HostContext

func (f ProviderFunc) HostContext(ctx context.Context) HostContext { return f(ctx) }

// Nop reports nothing; every host key is recorded as null.
type Nop struct{}

func (Nop) HostContext(context.Context) HostContext { return HostContext{} }

// Static is a process-level provider. Request-scoped values attached with
// WithRequest override its fields.
type Static struct {
	base HostContext
}

// NewStatic returns a provider that reports base for every call. A fresh
// request id is generated when base carries none, so one process run
// shares a single id.
func NewStatic(base HostContext) *Static {
	if base.RequestID == nil {
		base.RequestID = Ptr(uuid.NewString())
	}
	return &Static{base: base}
}

func (s *Static) HostContext(ctx context.Context) HostContext {
	return s.base.merge(FromContext(ctx))
}

type ctxKey struct{}

// WithRequest attaches request-scoped host values to ctx. Values already
// attached are kept unless h sets them again.
func WithRequest(ctx context.Context, h HostContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).merge(h))
}

// FromContext returns the request-scoped host values carried by ctx.
func FromContext(ctx context.Context) HostContext {
	if ctx == nil {
		return HostContext{}
	}
	h, _ := ctx.Value(ctxKey{}).(HostContext)
	return h
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
