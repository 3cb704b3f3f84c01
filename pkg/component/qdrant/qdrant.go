// Package qdrant wraps the Qdrant gRPC client for per-document vector collections.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	qdrantopts "github.com/kart-io/sentinel-rag/pkg/options/qdrant"
)

const defaultGRPCPort = 6334

// Client wraps the Qdrant SDK client.
type Client struct {
	client *qdrant.Client
	opts   *qdrantopts.Options
}

// New creates a new Qdrant client. The connection is established lazily by gRPC.
func New(opts *qdrantopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("qdrant options is nil")
	}

	// Qdrant 客户端的 Host 字段只接受主机名，端口需要单独设置
	host, portStr, err := net.SplitHostPort(opts.Address)
	if err != nil {
		host = opts.Address
		portStr = strconv.Itoa(defaultGRPCPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// CreateCollection creates a cosine collection of the given dimension if it does not exist.
func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	exists, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Point is a vector with a numeric id and a flat payload.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// Upsert writes points and waits until they are searchable.
func (c *Client) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = toValue(v)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	wait := true
	if _, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         structs,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// ScoredPoint is a search hit. With a cosine collection Score is the cosine similarity.
type ScoredPoint struct {
	ID      uint64
	Score   float32
	Payload map[string]any
}

// Search returns the topK nearest points in descending score order.
func (c *Client) Search(ctx context.Context, name string, vector []float32, topK int) ([]ScoredPoint, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	limit := uint64(topK)
	results, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		hit := ScoredPoint{
			ID:      r.GetId().GetNum(),
			Score:   r.GetScore(),
			Payload: make(map[string]any, len(r.GetPayload())),
		}
		for k, v := range r.GetPayload() {
			hit.Payload[k] = fromValue(v)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the exact number of points in a collection.
func (c *Client) Count(ctx context.Context, name string) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	exact := true
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

// ListCollections returns all collection names.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	names, err := c.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// DropCollection deletes a collection.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Ping checks server reachability.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case bool:
		return qdrant.NewValueBool(val)
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", v))
	}
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}
