package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Neo4jClient implements Client for Neo4j graph databases.
// It provides connection pooling, automatic retries, and health monitoring.
type Neo4jClient struct {
	config Config
	driver neo4j.DriverWithContext
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(config Config) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Neo4jClient{
		config: config,
	}, nil
}

// Connect establishes a connection to the Neo4j database.
// Uses exponential backoff for connection retries.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		config.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
		config.MaxTransactionRetryTime = c.config.MaxTransactionRetryTime
		// Note: Encryption is controlled by URI scheme (bolt:// vs bolt+s://)
	}

	var driver neo4j.DriverWithContext
	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		driver, err = neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				c.driver = driver
				return nil
			}
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(ErrCodeGraphConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}

		// Backoff delay: baseDelay * 2^attempt, capped at the connection timeout
		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(ErrCodeGraphConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapError(ErrCodeGraphConnectionFailed,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases all resources and closes the database connection.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}

	if err := c.driver.Close(ctx); err != nil {
		return types.WrapError(ErrCodeGraphConnectionClosed,
			"failed to close driver", err)
	}

	c.driver = nil
	return nil
}

// VerifyConnectivity checks that the database is reachable.
func (c *Neo4jClient) VerifyConnectivity(ctx context.Context) error {
	if c.driver == nil {
		return types.NewError(ErrCodeGraphConnectionClosed, "driver not connected")
	}
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return types.WrapError(ErrCodeGraphConnectionLost, "connectivity check failed", err)
	}
	return nil
}

// Health returns the current health status of the Neo4j connection.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	if c.driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}

	return types.Healthy("connected to Neo4j")
}

// Query executes a Cypher query in a read transaction.
func (c *Neo4jClient) Query(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	if c.driver == nil {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}

	startTime := time.Now()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})

	if err != nil {
		return QueryResult{}, types.WrapError(ErrCodeGraphQueryFailed,
			"query execution failed", err)
	}

	queryResult := result.(QueryResult)
	queryResult.Summary.ExecutionTime = time.Since(startTime)

	return queryResult, nil
}

// WriteQuery executes a Cypher query in a write transaction.
func (c *Neo4jClient) WriteQuery(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	if c.driver == nil {
		return QueryResult{}, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}

	startTime := time.Now()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})

	if err != nil {
		return QueryResult{}, types.WrapError(ErrCodeGraphWriteFailed,
			"write query execution failed", err)
	}

	queryResult := result.(QueryResult)
	queryResult.Summary.ExecutionTime = time.Since(startTime)

	return queryResult, nil
}

// VectorQuery runs a similarity search against a named vector index.
func (c *Neo4jClient) VectorQuery(ctx context.Context, index string, embedding []float64, k int) ([]VectorMatch, error) {
	if c.driver == nil {
		return nil, types.NewError(ErrCodeGraphConnectionClosed,
			"driver not connected")
	}
	if index == "" {
		return nil, types.NewError(ErrCodeGraphInvalidQuery, "vector index name cannot be empty")
	}
	if k <= 0 {
		return nil, types.NewError(ErrCodeGraphInvalidQuery, "k must be positive")
	}

	cypher := `CALL db.index.vector.queryNodes($index, $k, $embedding)
YIELD node, score
RETURN node.uuid AS uuid, score, properties(node) AS props, labels(node) AS labels`

	params := map[string]any{
		"index":     index,
		"k":         k,
		"embedding": embedding,
	}

	result, err := c.Query(ctx, cypher, params)
	if err != nil {
		return nil, types.WrapError(ErrCodeGraphVectorQueryFailed,
			fmt.Sprintf("vector query against index %q failed", index), err)
	}

	matches := make([]VectorMatch, 0, len(result.Records))
	for _, record := range result.Records {
		match := VectorMatch{}
		if uuid, ok := record["uuid"].(string); ok {
			match.UUID = uuid
		}
		if score, ok := record["score"].(float64); ok {
			match.Score = score
		}
		if props, ok := record["props"].(map[string]any); ok {
			match.Properties = props
		}
		if labels, ok := record["labels"].([]any); ok {
			match.Labels = make([]string, 0, len(labels))
			for _, l := range labels {
				if s, ok := l.(string); ok {
					match.Labels = append(match.Labels, s)
				}
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// Explain asks the planner for the query plan without executing cypher.
func (c *Neo4jClient) Explain(ctx context.Context, cypher string, params map[string]any) (Plan, error) {
	if c.driver == nil {
		return Plan{}, types.NewError(ErrCodeGraphConnectionClosed, "driver not connected")
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, "EXPLAIN "+cypher, params)
		if err != nil {
			return nil, err
		}
		summary, err := neoResult.Consume(ctx)
		if err != nil {
			return nil, err
		}
		if summary.Plan() == nil {
			return Plan{}, nil
		}
		return convertPlan(summary.Plan()), nil
	})

	if err != nil {
		return Plan{}, types.WrapError(ErrCodeGraphQueryFailed,
			"explain failed", err)
	}

	return result.(Plan), nil
}

// convertPlan maps the driver's plan tree onto our Plan type.
func convertPlan(p neo4j.Plan) Plan {
	plan := Plan{
		Operator:    p.Operator(),
		Identifiers: p.Identifiers(),
	}
	if rows, ok := p.Arguments()["EstimatedRows"].(float64); ok {
		plan.EstimatedRows = rows
	}
	for _, child := range p.Children() {
		plan.Children = append(plan.Children, convertPlan(child))
	}
	return plan
}

// runAndCollect executes cypher inside tx and materializes the full result set.
func runAndCollect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (any, error) {
	neoResult, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	records, err := neoResult.Collect(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := neoResult.Consume(ctx)
	if err != nil {
		return nil, err
	}

	return convertNeo4jResult(records, summary), nil
}

// convertNeo4jResult converts Neo4j records and summary to our QueryResult format.
func convertNeo4jResult(records []*neo4j.Record, summary neo4j.ResultSummary) QueryResult {
	result := QueryResult{
		Records: make([]map[string]any, 0, len(records)),
		Columns: []string{},
	}

	if len(records) > 0 {
		result.Columns = records[0].Keys
	}

	for _, record := range records {
		recordMap := make(map[string]any)
		for i, key := range record.Keys {
			recordMap[key] = flattenValue(record.Values[i])
		}
		result.Records = append(result.Records, recordMap)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		result.Summary = QuerySummary{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
		}
	}

	return result
}

// flattenValue unwraps driver entity types so callers see plain maps and slices.
func flattenValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		return val.Props
	case dbtype.Relationship:
		return val.Props
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flattenValue(item)
		}
		return out
	default:
		return v
	}
}
