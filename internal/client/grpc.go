package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/server"
)

// GRPCClient calls the search service over gRPC.
type GRPCClient struct {
	conn      *grpc.ClientConn
	token     string
	principal Principal
}

var _ Searcher = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are appended after the insecure transport default.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

// As sets the principal sent with every call.
func (c *GRPCClient) As(p Principal) *GRPCClient {
	c.principal = p
	return c
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Search runs req against entity on the server.
func (c *GRPCClient) Search(ctx context.Context, entity string, req *filter.Request) (*SearchResponse, error) {
	in, err := server.SelectRequestToProto(entity, req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), server.SelectMethod, in, out); err != nil {
		return nil, err
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	var kv []string
	if c.token != "" {
		kv = append(kv, "authorization", "Bearer "+c.token)
	}
	if c.principal.User != "" {
		kv = append(kv, "x-kq-user", c.principal.User)
		if len(c.principal.Roles) > 0 {
			kv = append(kv, "x-kq-roles", strings.Join(c.principal.Roles, ","))
		}
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
