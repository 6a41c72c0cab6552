package observability

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "issue-tracker"

// NewHTTPClient returns a client whose outbound calls are traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// StartSessionSpan starts a span for resolving a session from a token.
func StartSessionSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session.resolve",
		trace.WithAttributes(attribute.String("identity.provider", provider)),
	)
}

// StartEscalationSpan starts a span for pushing an issue to the external tracker.
func StartEscalationSpan(ctx context.Context, orgID, issueID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "issue.escalate",
		trace.WithAttributes(
			attribute.String("organization.id", orgID),
			attribute.String("issue.id", issueID),
		),
	)
}
