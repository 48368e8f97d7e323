// Package grpcclient provides a fluent builder for secure gRPC client connections
// that authenticate with the same stored credential as an httpclient.Client.
//
// It defaults to TLS 1.2+ using system roots to avoid accidental plaintext connections. Optional
// methods let you attach the stored credential, custom CA or mTLS credentials, and extra dial options.
//
// # Features
//
//   - Fluent builder for gRPC clients
//   - Per-RPC bearer credentials read from a credential.Store
//   - Refresh-and-replay of unary calls rejected with TOKEN-E-002, sharing the HTTP client's refresh
//   - Secure-by-default TLS; optional custom CA and mTLS
//   - Additional dial options via WithDialOptions
//
// # Quick Start
//
//	store := credential.NewMemoryStore()
//	httpClient, err := httpclient.New("https://api.example.com", store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithCredentials(store, httpClient).
//	    WithTLS("/path/to/ca.crt", "", "", "server.example.com").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := pb.NewYourServiceClient(conn)
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
// Per-RPC credentials are only sent over a secure transport.
//
// Streams carry the credential but are never replayed.
package grpcclient
