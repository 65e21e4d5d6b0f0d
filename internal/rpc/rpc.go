// Package rpc describes the siteconfig.v1.SiteConfigService gRPC service.
// Messages are protobuf well-known types, so no generated code is needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "siteconfig.v1.SiteConfigService"

	GetConfigMethod     = "/" + ServiceName + "/GetConfig"
	GetStylesheetMethod = "/" + ServiceName + "/GetStylesheet"
)

// Response metadata set by GetConfig and GetStylesheet.
const (
	// VersionHeader carries the config version.
	VersionHeader = "x-config-version"
	// EpochHeader carries the store epoch the version counts in.
	EpochHeader = "x-config-epoch"
	// ModuleOrderHeader carries the comma-joined module keys in declaration
	// order, which a Struct cannot preserve.
	ModuleOrderHeader = "x-module-order"
)

// SiteConfigServiceServer is the server API for SiteConfigService.
type SiteConfigServiceServer interface {
	// GetConfig returns the full site config as a JSON-shaped Struct.
	GetConfig(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetStylesheet returns the theme rendered as CSS custom properties.
	GetStylesheet(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// RegisterSiteConfigServiceServer registers srv on s.
func RegisterSiteConfigServiceServer(s grpc.ServiceRegistrar, srv SiteConfigServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for SiteConfigService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SiteConfigServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetConfig", Handler: getConfigHandler},
		{MethodName: "GetStylesheet", Handler: getStylesheetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "siteconfig/v1/siteconfig.proto",
}

func getConfigHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SiteConfigServiceServer).GetConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetConfigMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SiteConfigServiceServer).GetConfig(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStylesheetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SiteConfigServiceServer).GetStylesheet(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStylesheetMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SiteConfigServiceServer).GetStylesheet(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
