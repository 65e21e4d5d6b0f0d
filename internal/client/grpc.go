package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/rpc"
)

// GRPCClient implements ConfigReader using the gRPC transport.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// Compile-time check that GRPCClient implements ConfigReader.
var _ ConfigReader = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) GetConfig(ctx context.Context) (*model.Snapshot, error) {
	var (
		out    structpb.Struct
		header metadata.MD
	)
	if err := c.conn.Invoke(ctx, rpc.GetConfigMethod, &emptypb.Empty{}, &out, grpc.Header(&header)); err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	cfg, err := structToConfig(&out)
	if err != nil {
		return nil, err
	}
	if order := headerValue(header, rpc.ModuleOrderHeader); order != "" {
		cfg.Modules = reorderModules(cfg.Modules, strings.Split(order, ","))
	}
	return &model.Snapshot{Version: headerVersion(header), Epoch: headerEpoch(header), Config: cfg}, nil
}

func (c *GRPCClient) GetStylesheet(ctx context.Context) (string, int64, error) {
	var (
		out    wrapperspb.StringValue
		header metadata.MD
	)
	if err := c.conn.Invoke(ctx, rpc.GetStylesheetMethod, &emptypb.Empty{}, &out, grpc.Header(&header)); err != nil {
		return "", 0, fmt.Errorf("get stylesheet: %w", err)
	}
	return out.GetValue(), headerVersion(header), nil
}

// Health queries the standard gRPC health service for SiteConfigService.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return "", fmt.Errorf("health check: %w", status.Convert(err).Err())
	}
	return strings.ToLower(resp.GetStatus().String()), nil
}

func structToConfig(st *structpb.Struct) (model.SiteConfig, error) {
	var cfg model.SiteConfig
	data, err := json.Marshal(st.AsMap())
	if err != nil {
		return cfg, fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// reorderModules puts mods in the given key order. Keys missing from order
// keep their relative position after the ordered ones.
func reorderModules(mods model.Modules, order []string) model.Modules {
	out := make(model.Modules, 0, len(mods))
	placed := make(map[string]bool, len(order))
	for _, key := range order {
		for _, nm := range mods {
			if nm.Key == key && !placed[key] {
				out = append(out, nm)
				placed[key] = true
			}
		}
	}
	for _, nm := range mods {
		if !placed[nm.Key] {
			out = append(out, nm)
		}
	}
	return out
}

func headerValue(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func headerVersion(md metadata.MD) int64 {
	v, _ := strconv.ParseInt(headerValue(md, rpc.VersionHeader), 10, 64)
	return v
}

func headerEpoch(md metadata.MD) int64 {
	v, _ := strconv.ParseInt(headerValue(md, rpc.EpochHeader), 10, 64)
	return v
}
