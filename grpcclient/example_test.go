package grpcclient_test

import (
	"context"
	"fmt"
	"log"

	"github.com/AmmannChristian/go-sessionx/credential"
	"github.com/AmmannChristian/go-sessionx/grpcclient"
	"github.com/AmmannChristian/go-sessionx/httpclient"
)

// Example demonstrates a gRPC connection sharing its credential with an HTTP client.
func Example() {
	ctx := context.Background()

	store := credential.NewMemoryStore()
	httpClient, err := httpclient.New("https://api.example.com", store)
	if err != nil {
		log.Fatal(err)
	}

	conn, err := grpcclient.NewBuilder().
		WithAddress("server.example.com:9090").
		WithCredentials(store, httpClient).
		Build(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	fmt.Println("gRPC connection established")
	// Output: gRPC connection established
}

// ExampleNewBuilder demonstrates creating a new builder.
func ExampleNewBuilder() {
	builder := grpcclient.NewBuilder()

	fmt.Println("Builder created")
	_ = builder
	// Output: Builder created
}

// ExampleBuilder_WithTLS demonstrates TLS configuration.
func ExampleBuilder_WithTLS() {
	ctx := context.Background()

	conn, err := grpcclient.NewBuilder().
		WithAddress("secure.example.com:9090").
		WithTLS(
			"/path/to/ca.crt",     // CA certificate
			"/path/to/client.crt", // Client certificate (optional)
			"/path/to/client.key", // Client key (optional)
			"secure.example.com",  // Server name override (optional)
		).
		Build(ctx)
	if err != nil {
		// In this example, files don't exist, so we expect an error
		fmt.Println("TLS configuration attempted")
		return
	}
	defer conn.Close()

	fmt.Println("TLS enabled")
	// Output: TLS configuration attempted
}
