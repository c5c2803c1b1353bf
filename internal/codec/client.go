// Package codec is the gRPC client for the external generation and embedding
// backend. Messages are google.protobuf.Struct values so no generated stubs
// are needed on either side.
package codec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
const (
	MethodGenerate = "/ksasa.v1.Codec/Generate"
	MethodEmbed    = "/ksasa.v1.Codec/Embed"
)

// #endregion methods

// #region config
// Config bounds how hard the client drives the backend.
type Config struct {
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

// DefaultConfig returns a 20s per-call timeout and 5 calls/s with burst 5.
func DefaultConfig() Config {
	return Config{Timeout: 20 * time.Second, RPS: 5, Burst: 5}
}

// ErrMalformedResponse is returned when the backend reply lacks expected fields.
var ErrMalformedResponse = errors.New("malformed codec response")

// #endregion config

// #region client-struct
// CodecClient wraps the gRPC connection to the inference backend.
type CodecClient struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	limiter *rate.Limiter
	timeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the backend at addr. The connection is lazy; no
// network traffic happens until the first call.
func NewCodecClient(addr string, cfg Config) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := newClient(conn, cfg)
	c.conn = conn
	return c, nil
}

// NewCodecClientWithService creates a CodecClient over an injected connection.
// Used for testing without a real backend.
func NewCodecClientWithService(cc grpc.ClientConnInterface, cfg Config) *CodecClient {
	return newClient(cc, cfg)
}

func newClient(cc grpc.ClientConnInterface, cfg Config) *CodecClient {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &CodecClient{
		cc:      cc,
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		timeout: cfg.Timeout,
	}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region invoke
func (c *CodecClient) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion invoke

// #region generate
// Generate asks the backend to complete prompt using evidence lines. It
// satisfies lesson.Generator.
func (c *CodecClient) Generate(ctx context.Context, prompt string, evidence []string) (string, error) {
	ev := make([]any, len(evidence))
	for i, e := range evidence {
		ev[i] = e
	}
	resp, err := c.invoke(ctx, MethodGenerate, map[string]any{
		"prompt":   prompt,
		"evidence": ev,
	})
	if err != nil {
		return "", fmt.Errorf("generate rpc: %w", err)
	}
	text, ok := resp.GetFields()["text"]
	if !ok {
		return "", fmt.Errorf("generate rpc: %w: missing text", ErrMalformedResponse)
	}
	return text.GetStringValue(), nil
}

// #endregion generate

// #region embed
// Embed returns one vector per input text. It satisfies evidence.Embedder.
func (c *CodecClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := make([]any, len(texts))
	for i, t := range texts {
		in[i] = t
	}
	resp, err := c.invoke(ctx, MethodEmbed, map[string]any{"texts": in})
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}

	rows := resp.GetFields()["embeddings"].GetListValue().GetValues()
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("embed rpc: %w: %d embeddings for %d texts", ErrMalformedResponse, len(rows), len(texts))
	}
	out := make([][]float32, len(rows))
	for i, row := range rows {
		vals := row.GetListValue().GetValues()
		vec := make([]float32, len(vals))
		for j, v := range vals {
			vec[j] = float32(v.GetNumberValue())
		}
		out[i] = vec
	}
	return out, nil
}

// #endregion embed
