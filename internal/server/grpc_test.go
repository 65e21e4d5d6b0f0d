package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/rpc"
)

func newGRPCConn(t *testing.T, env *testEnv) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(env.server, nil)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPC_GetConfig(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)

	var (
		out    structpb.Struct
		header metadata.MD
	)
	if err := conn.Invoke(context.Background(), rpc.GetConfigMethod, &emptypb.Empty{}, &out, grpc.Header(&header)); err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	theme := out.GetFields()["theme"].GetStructValue()
	if got := theme.GetFields()["primaryColor"].GetStringValue(); got != "#ff6a3e" {
		t.Errorf("primaryColor = %q", got)
	}
	if v := header.Get(rpc.VersionHeader); len(v) != 1 || v[0] != "1" {
		t.Errorf("version header = %v", v)
	}
	if v := header.Get(rpc.EpochHeader); len(v) != 1 || v[0] == "0" || v[0] == "" {
		t.Errorf("epoch header = %v", v)
	}
	if v := header.Get(rpc.ModuleOrderHeader); len(v) != 1 || v[0][:len("projectEstimator")] != "projectEstimator" {
		t.Errorf("module order header = %v", v)
	}
}

func TestGRPC_GetStylesheet(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)

	var out wrapperspb.StringValue
	if err := conn.Invoke(context.Background(), rpc.GetStylesheetMethod, &emptypb.Empty{}, &out); err != nil {
		t.Fatalf("GetStylesheet: %v", err)
	}
	if out.GetValue() != model.RenderThemeAsStyleSheet(model.Default().Theme) {
		t.Errorf("css = %q", out.GetValue())
	}
}

func TestGRPC_Health(t *testing.T) {
	env := newTestEnv(t)
	conn := newGRPCConn(t, env)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}
