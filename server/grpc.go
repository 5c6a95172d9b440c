// Package server exposes the exporter over gRPC and over a WebSocket
// bridge that speaks the browser popup's message protocol.
package server

import (
	"context"
	"math"
	"net"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
)

// Exporter is the application surface the transports drive.
type Exporter interface {
	Export(ctx context.Context, requested int) (*export.Outcome, error)
	Cancel() bool
	Latest() (*export.Session, error)
}

// GRPCServer implements the purchases.PurchaseExporter service.
type GRPCServer struct {
	Exporter Exporter
	Logger   *zap.SugaredLogger
	Version  string
	// DefaultCount is used when an Export request names no count.
	DefaultCount int
}

// NewGRPCServer returns a grpc.Server with the exporter service and
// reflection registered.
func NewGRPCServer(srv *GRPCServer, opts ...grpc.ServerOption) *grpc.Server {
	if srv.Logger == nil {
		srv.Logger = zap.NewNop().Sugar()
	}
	gs := grpc.NewServer(opts...)
	RegisterExporterServer(gs, srv)
	reflection.Register(gs)
	return gs
}

// RunGRPCServer serves gs on lis until ctx is done, then stops gracefully.
func RunGRPCServer(ctx context.Context, gs *grpc.Server, lis net.Listener, logger *zap.SugaredLogger) error {
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	logger.Infof("gRPC server listening on %s", lis.Addr())
	if err := gs.Serve(lis); err != nil {
		return errors.Wrap(err, "gRPC server stopped")
	}
	return nil
}

// Health implements the Health RPC
func (s *GRPCServer) Health(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.Logger.Debug("Health check requested")
	return structpb.NewStruct(map[string]any{
		"healthy": true,
		"version": s.Version,
	})
}

// Export implements the Export RPC. The request carries maxPurchases.
func (s *GRPCServer) Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requested := s.DefaultCount
	if v, ok := req.GetFields()["maxPurchases"]; ok {
		n := v.GetNumberValue()
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum || n != math.Trunc(n) || n > math.MaxInt32 {
			return nil, status.Errorf(codes.InvalidArgument, "maxPurchases must be a whole number")
		}
		requested = int(n)
	}
	s.Logger.Infof("Export requested for %d purchases", requested)

	out, err := s.Exporter.Export(ctx, requested)
	if errors.Is(err, extract.ErrInvalidCount) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err != nil {
		s.Logger.Errorf("Export failed: %v", err)
	}
	return structpb.NewStruct(exportResponse(out, err))
}

// Cancel implements the Cancel RPC
func (s *GRPCServer) Cancel(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cancelled := s.Exporter.Cancel()
	s.Logger.Infof("Cancel requested (active run aborted: %v)", cancelled)
	return structpb.NewStruct(map[string]any{"success": true, "cancelled": cancelled})
}

// GetExports implements the GetExports RPC
func (s *GRPCServer) GetExports(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	session, err := s.Exporter.Latest()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(sessionResponse(session))
}
