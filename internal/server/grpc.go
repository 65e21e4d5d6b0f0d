package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/rpc"
	"github.com/alfredjeanlab/sitesync/internal/service"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

// NewGRPCServer registers SiteConfigService, health and reflection on a new
// gRPC server. logger may be nil.
func NewGRPCServer(s *Server, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(UnaryInterceptor(logger)),
		grpc.StreamInterceptor(StreamInterceptor(logger)),
	)

	rpc.RegisterSiteConfigServiceServer(srv, &grpcService{svc: s.svc})

	hs := health.NewServer()
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}

// grpcService implements rpc.SiteConfigServiceServer over the config service.
type grpcService struct {
	svc *service.ConfigService
}

func (g *grpcService) GetConfig(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := g.svc.GetConfig(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	st, err := configToStruct(snap.Config)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode config: %v", err)
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(
		rpc.VersionHeader, strconv.FormatInt(snap.Version, 10),
		rpc.EpochHeader, strconv.FormatInt(snap.Epoch, 10),
		rpc.ModuleOrderHeader, strings.Join(snap.Config.Modules.Keys(), ","),
	))
	return st, nil
}

func (g *grpcService) GetStylesheet(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	css, rev, err := g.svc.GetStylesheet(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(
		rpc.VersionHeader, strconv.FormatInt(rev.Version, 10),
		rpc.EpochHeader, strconv.FormatInt(rev.Epoch, 10),
	))
	return wrapperspb.String(css), nil
}

func configToStruct(cfg model.SiteConfig) (*structpb.Struct, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// grpcError maps service and store errors to gRPC status codes.
func grpcError(err error) error {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, service.ErrUnknownModule):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
