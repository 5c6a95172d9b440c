package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "purchases.PurchaseExporter"

// ExporterServer is the server API for the PurchaseExporter service.
// Requests and responses use the well-known Struct and Empty messages.
type ExporterServer interface {
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Export(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetExports(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterExporterServer registers srv on s.
func RegisterExporterServer(s grpc.ServiceRegistrar, srv ExporterServer) {
	s.RegisterService(&ExporterServiceDesc, srv)
}

// ExporterServiceDesc describes the PurchaseExporter service.
var ExporterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExporterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: emptyHandler("Health", ExporterServer.Health)},
		{MethodName: "Export", Handler: exportHandler},
		{MethodName: "Cancel", Handler: emptyHandler("Cancel", ExporterServer.Cancel)},
		{MethodName: "GetExports", Handler: emptyHandler("GetExports", ExporterServer.GetExports)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "purchases.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

type emptyMethod func(ExporterServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func emptyHandler(name string, call emptyMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExporterServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExporterServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func exportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExporterServer).Export(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Export")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExporterServer).Export(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
