// Package grpcapi exposes the Lox playground over gRPC. Messages are
// google.protobuf.Struct values, so clients need no generated stubs.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/service"
	"github.com/lemonberrylabs/loxwalk/pkg/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "loxwalk.v1.Interpreter"

// Full method names, for clients calling through grpc.ClientConn.Invoke.
const (
	MethodRun       = "/" + ServiceName + "/Run"
	MethodRunScript = "/" + ServiceName + "/RunScript"
	MethodGetRun    = "/" + ServiceName + "/GetRun"
)

// Interpreter is the server side of the loxwalk.v1.Interpreter service.
type Interpreter interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunScript(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements the Interpreter and health gRPC services.
type Server struct {
	svc    *service.Service
	logger *zap.Logger
	health *health.Server
	grpc   *grpc.Server
}

// New creates a new gRPC server backed by svc.
func New(svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		svc:    svc,
		logger: logger,
		health: health.NewServer(),
	}

	gs := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_prometheus.UnaryServerInterceptor,
			srv.logCalls,
		)),
	)
	RegisterInterpreterServer(gs, srv)
	healthpb.RegisterHealthServer(gs, srv.health)
	srv.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	srv.grpc = gs

	grpc_prometheus.Register(gs)
	grpc_prometheus.EnableHandlingTimeHistogram()

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop marks the service as not serving and waits for pending calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Stop closes all connections immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}

func (s *Server) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	s.logger.Info("rpc",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
	)
	return resp, err
}

// --- Interpreter Service ---

// Run executes the "source" field of the request on fresh globals.
func (s *Server) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	run, err := s.svc.RunSource(ctx, stringField(req, "source"))
	if err != nil {
		return nil, serviceError(err)
	}
	return runToProto(run)
}

// RunScript executes the stored script named by the "id" field.
func (s *Server) RunScript(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	run, err := s.svc.RunScript(ctx, id)
	if err != nil {
		return nil, serviceError(err)
	}
	return runToProto(run)
}

// GetRun returns a recorded run by its "id" field.
func (s *Server) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	run, err := s.svc.Store().GetRun(id)
	if err != nil {
		return nil, serviceError(err)
	}
	return runToProto(run)
}

// --- Registration ---

// RegisterInterpreterServer registers srv on gs.
func RegisterInterpreterServer(gs grpc.ServiceRegistrar, srv Interpreter) {
	gs.RegisterService(&interpreterServiceDesc, srv)
}

var interpreterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Interpreter)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: unaryHandler(MethodRun, Interpreter.Run)},
		{MethodName: "RunScript", Handler: unaryHandler(MethodRunScript, Interpreter.RunScript)},
		{MethodName: "GetRun", Handler: unaryHandler(MethodGetRun, Interpreter.GetRun)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "google/protobuf/struct.proto",
}

type unaryMethod func(Interpreter, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(Interpreter), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(Interpreter), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// --- Conversion ---

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func runToProto(run *store.Run) (*structpb.Struct, error) {
	diags := lo.Map(run.Diagnostics, func(d *diagnostics.Diagnostic, _ int) interface{} {
		return map[string]interface{}{
			"kind":    d.Kind.String(),
			"line":    d.Line,
			"where":   d.Where,
			"message": d.Message,
		}
	})
	fields := map[string]interface{}{
		"id":          run.ID,
		"state":       string(run.State),
		"output":      run.Output,
		"diagnostics": diags,
		"startTime":   run.StartTime.UTC().Format(time.RFC3339Nano),
		"endTime":     run.EndTime.UTC().Format(time.RFC3339Nano),
	}
	if run.ScriptID != "" {
		fields["scriptId"] = run.ScriptID
		fields["scriptRevision"] = run.ScriptRevision
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode run: %v", err)
	}
	return out, nil
}

func serviceError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptySource):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrSourceTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
