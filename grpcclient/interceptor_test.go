package grpcclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/go-sessionx/credential"
	"github.com/AmmannChristian/go-sessionx/envelope"
)

// scriptedInvoker returns the queued errors in order, then nil.
func scriptedInvoker(errs ...error) (grpc.UnaryInvoker, *int) {
	calls := 0
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		if len(errs) == 0 {
			return nil
		}
		err := errs[0]
		errs = errs[1:]
		return err
	}, &calls
}

func expiredErr() error {
	return status.Error(codes.Unauthenticated, envelope.CodeTokenExpired)
}

func TestRefreshUnaryInterceptor_Success(t *testing.T) {
	refresher := &stubRefresher{ok: true}
	invoker, calls := scriptedInvoker()

	err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected 1 invocation, got %d", *calls)
	}
	if refresher.calls != 0 {
		t.Errorf("expected no refresh, got %d", refresher.calls)
	}
}

func TestRefreshUnaryInterceptor_ExpiredRefreshAndReplay(t *testing.T) {
	refresher := &stubRefresher{ok: true}
	invoker, calls := scriptedInvoker(expiredErr())

	err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if err != nil {
		t.Fatalf("expected replay to succeed, got %v", err)
	}
	if *calls != 2 {
		t.Errorf("expected original and replay, got %d invocations", *calls)
	}
	if refresher.calls != 1 {
		t.Errorf("expected 1 refresh, got %d", refresher.calls)
	}
}

func TestRefreshUnaryInterceptor_ReplayExpiredAgain(t *testing.T) {
	refresher := &stubRefresher{ok: true}
	invoker, calls := scriptedInvoker(expiredErr(), expiredErr())

	err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if !IsCredentialExpired(err) {
		t.Fatalf("expected expired status from the replay, got %v", err)
	}
	if *calls != 2 {
		t.Errorf("expected at most one replay, got %d invocations", *calls)
	}
	if refresher.calls != 1 {
		t.Errorf("expected 1 refresh, got %d", refresher.calls)
	}
}

func TestRefreshUnaryInterceptor_RefreshFails(t *testing.T) {
	refresher := &stubRefresher{ok: false}
	original := expiredErr()
	invoker, calls := scriptedInvoker(original)

	err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if err != original {
		t.Fatalf("expected original error, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected no replay, got %d invocations", *calls)
	}
}

func TestRefreshUnaryInterceptor_WaiterCancelled(t *testing.T) {
	refresher := &stubRefresher{err: context.Canceled}
	invoker, calls := scriptedInvoker(expiredErr())

	err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if status.Code(err) != codes.Canceled {
		t.Fatalf("expected Canceled, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected no replay, got %d invocations", *calls)
	}
}

func TestRefreshUnaryInterceptor_ReportsUnauthorized(t *testing.T) {
	tests := []struct {
		name      string
		ok        bool
		errs      []error
		wantCalls int
	}{
		{"refresh fails", false, []error{expiredErr()}, 1},
		{"replay expired again", true, []error{expiredErr(), expiredErr()}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &reportingRefresher{stubRefresher: stubRefresher{ok: tt.ok}}
			invoker, calls := scriptedInvoker(tt.errs...)

			err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
			if !IsCredentialExpired(err) {
				t.Fatalf("expected expired status, got %v", err)
			}
			if *calls != tt.wantCalls {
				t.Errorf("expected %d invocations, got %d", tt.wantCalls, *calls)
			}
			if len(refresher.reports) != 1 {
				t.Fatalf("expected 1 unauthorized report, got %d", len(refresher.reports))
			}
			if refresher.reports[0] != envelope.CodeTokenExpired {
				t.Errorf("expected status message in report, got %q", refresher.reports[0])
			}
		})
	}
}

func TestRefreshUnaryInterceptor_NoReport(t *testing.T) {
	tests := []struct {
		name string
		r    *reportingRefresher
		errs []error
	}{
		{"replay succeeds", &reportingRefresher{stubRefresher: stubRefresher{ok: true}}, []error{expiredErr()}},
		{"waiter cancelled", &reportingRefresher{stubRefresher: stubRefresher{err: context.Canceled}}, []error{expiredErr()}},
		{"invalid credential", &reportingRefresher{stubRefresher: stubRefresher{ok: true}}, []error{status.Error(codes.Unauthenticated, envelope.CodeTokenInvalid)}},
		{"replay fails otherwise", &reportingRefresher{stubRefresher: stubRefresher{ok: true}}, []error{expiredErr(), status.Error(codes.Unavailable, "down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker, _ := scriptedInvoker(tt.errs...)

			_ = RefreshUnaryInterceptor(tt.r)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
			if len(tt.r.reports) != 0 {
				t.Errorf("expected no unauthorized report, got %v", tt.r.reports)
			}
		})
	}
}

func TestRefreshUnaryInterceptor_OtherErrorsPassThrough(t *testing.T) {
	tests := []error{
		status.Error(codes.Unauthenticated, envelope.CodeTokenInvalid),
		status.Error(codes.Unauthenticated, "no credentials"),
		status.Error(codes.PermissionDenied, envelope.CodeTokenExpired),
		status.Error(codes.Unavailable, "connection refused"),
		errors.New("plain error"),
	}

	for _, want := range tests {
		refresher := &stubRefresher{ok: true}
		invoker, calls := scriptedInvoker(want)

		err := RefreshUnaryInterceptor(refresher)(context.Background(), "/svc/Method", nil, nil, nil, invoker)
		if err != want {
			t.Errorf("expected %v to pass through, got %v", want, err)
		}
		if *calls != 1 || refresher.calls != 0 {
			t.Errorf("%v: expected no refresh or replay, got %d calls and %d refreshes", want, *calls, refresher.calls)
		}
	}
}

func TestIsCredentialExpired(t *testing.T) {
	if !IsCredentialExpired(status.Error(codes.Unauthenticated, "TOKEN-E-002: token has expired")) {
		t.Error("expected message containing the code to match")
	}
	if IsCredentialExpired(nil) {
		t.Error("nil error must not match")
	}
}

func TestPerRPCCredentials(t *testing.T) {
	store := credential.NewMemoryStore()
	if err := store.Set(context.Background(), &oauth2.Token{
		AccessToken: "grpc-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	creds := PerRPCCredentials(context.Background(), store)

	if !creds.RequireTransportSecurity() {
		t.Error("per-RPC credentials should require transport security")
	}

	ts, ok := creds.(oauth.TokenSource)
	if !ok {
		t.Fatalf("expected oauth.TokenSource, got %T", creds)
	}

	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok.AccessToken != "grpc-token" {
		t.Errorf("expected stored token, got %q", tok.AccessToken)
	}

	// The credentials follow the store.
	_ = store.Clear(context.Background())
	if _, err := ts.Token(); !errors.Is(err, credential.ErrNoCredential) {
		t.Errorf("expected ErrNoCredential once the store is empty, got %v", err)
	}
}
