package rpc

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/gradecast/pkg/api"
)

// Client calls a remote Predictor service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. tlsConfig may be nil for plaintext. Extra options
// are appended after the transport credentials.
func Dial(target string, tlsConfig *tls.Config, opts ...grpc.DialOption) (*Client, error) {
	creds := insecure.NewCredentials()
	if tlsConfig != nil {
		creds = credentials.NewTLS(tlsConfig)
	}
	all := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)

	conn, err := grpc.NewClient(target, all...)
	if err != nil {
		return nil, fmt.Errorf("dial predictor %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Predict sends req and decodes the response. Server-side failures come
// back as gRPC status errors.
func (c *Client) Predict(ctx context.Context, req api.PredictRequest) (api.PredictResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return api.PredictResponse{}, fmt.Errorf("encode request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, predictMethod, in, out); err != nil {
		return api.PredictResponse{}, err
	}

	var resp api.PredictResponse
	if err := fromStruct(out, &resp); err != nil {
		return api.PredictResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
