// Package graph provides the graph database client abstraction for codeatlas.
//
// This package defines a generic Client interface that can be implemented
// for different graph database backends. The primary implementation is for Neo4j,
// but the interface design allows for other graph databases to be integrated.
//
// # Architecture
//
// The package follows a clean interface-based design:
//
//   - Client: Core interface defining graph database operations
//   - Neo4jClient: Production implementation using the Neo4j Go driver
//   - MockClient: Test implementation for unit testing
//
// # Usage
//
// Basic usage with Neo4j:
//
//	config := graph.DefaultConfig()
//	config.URI = "bolt://localhost:7687"
//	config.Username = "neo4j"
//	config.Password = "password"
//
//	client, err := graph.NewNeo4jClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	// Execute a read query
//	result, err := client.Query(ctx,
//	    "MATCH (f:File {path: $path}) RETURN f",
//	    map[string]any{"path": "internal/graph/client.go"},
//	)
//
//	// Execute a batched upsert
//	_, err = client.WriteQuery(ctx,
//	    "UNWIND $rows AS row MERGE (f:File {uuid: row.uuid}) SET f += row.props",
//	    map[string]any{"rows": rows},
//	)
//
//	// Similarity search against a vector index
//	matches, err := client.VectorQuery(ctx, "function_embeddings", embedding, 10)
//
// # Connection Management
//
// The Neo4j client uses connection pooling with configurable limits:
//
//   - MaxConnectionPoolSize: Maximum connections in the pool (default: 50)
//   - ConnectionTimeout: Timeout for acquiring a connection (default: 30s)
//   - MaxTransactionRetryTime: Maximum retry time for transactions (default: 30s)
//
// Connections are automatically retried with exponential backoff on failure.
//
// # TLS/Encryption
//
// Encryption is controlled via the URI scheme:
//
//   - bolt://     - Unencrypted connection
//   - bolt+s://   - TLS encrypted with system CA verification
//   - bolt+ssc:// - TLS encrypted, self-signed certificates accepted
//   - neo4j://    - Routing with unencrypted connections
//   - neo4j+s://  - Routing with TLS encryption
//
// # Health Monitoring
//
// The Health() method returns a types.HealthStatus indicating the connection state:
//
//	status := client.Health(ctx)
//	if status.IsHealthy() {
//	    log.Println("Graph database is healthy")
//	}
//
// # Error Handling
//
// All errors are wrapped in types.AtlasError with specific error codes:
//
//   - ErrCodeGraphConnectionFailed: Connection establishment failed
//   - ErrCodeGraphConnectionClosed: Operation on closed connection
//   - ErrCodeGraphQueryFailed: Read query execution failed
//   - ErrCodeGraphWriteFailed: Write query execution failed
//   - ErrCodeGraphVectorQueryFailed: Vector index lookup failed
//
// # Testing
//
// Use MockClient for unit testing:
//
//	mock := graph.NewMockClient()
//	mock.Connect(ctx)
//
//	// Configure responses
//	mock.AddQueryResult(graph.QueryResult{
//	    Records: []map[string]any{{"name": "ParseFile"}},
//	    Columns: []string{"name"},
//	})
//
//	// Verify calls
//	calls := mock.GetCallsByMethod("Query")
//	assert.Len(t, calls, 1)
//
// # Thread Safety
//
// All implementations must be thread-safe for concurrent access. The Neo4j
// driver handles connection pooling and thread safety internally.
//
// # Query Results
//
// Query results are returned as QueryResult containing:
//
//   - Records: Slice of maps representing result rows
//   - Columns: Column names from the query
//   - Summary: Execution metadata (counters, timing)
//
// Driver entity values (nodes, relationships) are flattened to their property
// maps so callers never depend on driver types.
package graph
