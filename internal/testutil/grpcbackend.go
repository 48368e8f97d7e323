package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCBackend is a TLS gRPC server exposing the standard health service
// behind the same bearer check as Backend. Rejected calls fail with
// codes.Unauthenticated and a "TOKEN-E-00x: message" status message.
type GRPCBackend struct {
	// Addr is the loopback address the server listens on.
	Addr string
	// CertFile is the PEM server certificate, usable as the client's CA file.
	CertFile string
	// ServerName matches the certificate's DNS name.
	ServerName string

	calls atomic.Int64
}

// NewGRPCBackend starts a GRPCBackend that validates tokens against b and
// stops it on cleanup.
func NewGRPCBackend(tb testing.TB, b *Backend) *GRPCBackend {
	tb.Helper()

	certPEM, keyPEM := selfSignedServerCert(tb)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		tb.Fatalf("failed to load server key pair: %v", err)
	}

	certFile := filepath.Join(tb.TempDir(), "grpc-server.crt")
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		tb.Fatalf("failed to write server certificate: %v", err)
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	g := &GRPCBackend{
		Addr:       listener.Addr().String(),
		CertFile:   certFile,
		ServerName: "localhost",
	}

	server := grpc.NewServer(
		grpc.Creds(credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})),
		grpc.UnaryInterceptor(g.authenticate(b)),
	)
	healthpb.RegisterHealthServer(server, health.NewServer())

	go func() { _ = server.Serve(listener) }()
	tb.Cleanup(server.Stop)

	return g
}

// Calls returns how many unary calls reached the server, rejected ones included.
func (g *GRPCBackend) Calls() int {
	return int(g.calls.Load())
}

func (g *GRPCBackend) authenticate(b *Backend) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		g.calls.Add(1)

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		if code, message := b.CheckBearer(header); code != "" {
			return nil, status.Error(codes.Unauthenticated, fmt.Sprintf("%s: %s", code, message))
		}

		return handler(ctx, req)
	}
}

// selfSignedServerCert returns a certificate valid for localhost and 127.0.0.1
// that also acts as its own root.
func selfSignedServerCert(tb testing.TB) (certPEM, keyPEM []byte) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(3),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	return pemEncode("CERTIFICATE", der), pemEncode("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey))
}
