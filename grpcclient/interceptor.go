package grpcclient

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/go-sessionx/envelope"
)

// Refresher refreshes the shared credential. *httpclient.Client implements it.
type Refresher interface {
	EnsureFreshCredential(ctx context.Context) (bool, error)
}

// UnauthorizedReporter is an optional extension of Refresher that owns the
// unauthorized policy: clearing the credential and notifying the application.
// *httpclient.Client implements it.
type UnauthorizedReporter interface {
	ReportUnauthorized(ctx context.Context, message string)
}

// RefreshUnaryInterceptor returns a gRPC unary client interceptor that reacts
// to an expired credential.
//
// A call failing with codes.Unauthenticated whose status message carries
// TOKEN-E-002 triggers refresher.EnsureFreshCredential and, if the refresh
// succeeds, one replay of the call. When the refresh fails, or the replay is
// rejected as expired again, the error is returned and, if refresher also
// implements UnauthorizedReporter, ReportUnauthorized is called with the
// status message, so gRPC and HTTP callers end the session the same way.
// Other Unauthenticated statuses (TOKEN-E-001, TOKEN-E-003) are returned
// without touching the credential. A caller whose context ends while waiting
// on the refresh gets the matching context status and nothing is reported.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithPerRPCCredentials(grpcclient.PerRPCCredentials(ctx, store)),
//	    grpc.WithUnaryInterceptor(grpcclient.RefreshUnaryInterceptor(httpClient)),
//	)
func RefreshUnaryInterceptor(refresher Refresher) grpc.UnaryClientInterceptor {
	reporter, _ := refresher.(UnauthorizedReporter)

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if !IsCredentialExpired(err) {
			return err
		}

		ok, werr := refresher.EnsureFreshCredential(ctx)
		if werr != nil {
			return status.FromContextError(werr).Err()
		}
		if !ok {
			report(ctx, reporter, err)
			return err
		}

		// Per-RPC credentials read the store again, so the replay carries the new token.
		err = invoker(ctx, method, req, reply, cc, opts...)
		if IsCredentialExpired(err) {
			report(ctx, reporter, err)
		}
		return err
	}
}

func report(ctx context.Context, reporter UnauthorizedReporter, err error) {
	if reporter == nil {
		return
	}
	reporter.ReportUnauthorized(ctx, status.Convert(err).Message())
}

// IsCredentialExpired reports whether err is an Unauthenticated status
// carrying the expired-credential code.
func IsCredentialExpired(err error) bool {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated {
		return false
	}
	return strings.Contains(st.Message(), envelope.CodeTokenExpired)
}
