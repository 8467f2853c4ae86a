package simd

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// ResilienceServiceName is the fully qualified gRPC service name.
const ResilienceServiceName = "resilience.v1.ResilienceService"

// ResilienceServiceServer is the run service exposed over gRPC. Every
// message is a google.protobuf.Struct carrying the same JSON documents as
// the HTTP API.
type ResilienceServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamRunEvents(*structpb.Struct, ResilienceService_StreamRunEventsServer) error
}

// ResilienceService_StreamRunEventsServer is the server side of StreamRunEvents.
type ResilienceService_StreamRunEventsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type runEventsServer struct {
	grpc.ServerStream
}

func (x *runEventsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

type unaryMethod func(ResilienceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ResilienceServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ResilienceServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ResilienceServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func streamRunEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ResilienceServiceServer).StreamRunEvents(in, &runEventsServer{stream})
}

// ResilienceServiceDesc describes the run service for grpc.Server.RegisterService.
var ResilienceServiceDesc = grpc.ServiceDesc{
	ServiceName: ResilienceServiceName,
	HandlerType: (*ResilienceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateRun", ResilienceServiceServer.CreateRun),
		unaryHandler("StartRun", ResilienceServiceServer.StartRun),
		unaryHandler("StopRun", ResilienceServiceServer.StopRun),
		unaryHandler("GetRun", ResilienceServiceServer.GetRun),
		unaryHandler("GetReport", ResilienceServiceServer.GetReport),
		unaryHandler("ListRuns", ResilienceServiceServer.ListRuns),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamRunEvents",
			Handler:       streamRunEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "resilience/v1/resilience.proto",
}

// RegisterResilienceServiceServer registers srv on s.
func RegisterResilienceServiceServer(s grpc.ServiceRegistrar, srv ResilienceServiceServer) {
	s.RegisterService(&ResilienceServiceDesc, srv)
}

// ResilienceServiceClient calls the run service.
type ResilienceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewResilienceServiceClient(cc grpc.ClientConnInterface) *ResilienceServiceClient {
	return &ResilienceServiceClient{cc: cc}
}

func (c *ResilienceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ResilienceServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ResilienceServiceClient) CreateRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateRun", in, opts...)
}

func (c *ResilienceServiceClient) StartRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartRun", in, opts...)
}

func (c *ResilienceServiceClient) StopRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopRun", in, opts...)
}

func (c *ResilienceServiceClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", in, opts...)
}

func (c *ResilienceServiceClient) GetReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetReport", in, opts...)
}

func (c *ResilienceServiceClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", in, opts...)
}

// ResilienceService_StreamRunEventsClient is the client side of StreamRunEvents.
type ResilienceService_StreamRunEventsClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type runEventsClient struct {
	grpc.ClientStream
}

func (x *runEventsClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *ResilienceServiceClient) StreamRunEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (ResilienceService_StreamRunEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ResilienceServiceDesc.Streams[0], "/"+ResilienceServiceName+"/StreamRunEvents", opts...)
	if err != nil {
		return nil, err
	}
	x := &runEventsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// EncodeStruct converts any JSON-marshalable value into a Struct.
func EncodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeStruct fills v from a Struct using v's JSON field names.
func DecodeStruct(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// ResilienceGRPCServer implements ResilienceServiceServer on a RunStore backend.
type ResilienceGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

// NewResilienceGRPCServer creates a ResilienceGRPCServer with the provided RunStore and RunExecutor.
func NewResilienceGRPCServer(store *RunStore, executor *RunExecutor) *ResilienceGRPCServer {
	return &ResilienceGRPCServer{
		store:    store,
		Executor: executor,
	}
}

// NewGRPCServer builds a grpc.Server serving the run service together with
// health checks, reflection and Prometheus interceptors.
func NewGRPCServer(store *RunStore, executor *RunExecutor, opts ...grpc.ServerOption) *grpc.Server {
	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	s := grpc.NewServer(serverOpts...)

	RegisterResilienceServiceServer(s, NewResilienceGRPCServer(store, executor))
	grpc_prometheus.Register(s)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ResilienceServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthSrv)

	if err := registerResilienceDescriptor(); err != nil {
		logger.Warn("run service descriptor not registered, reflection will not resolve it", "error", err)
	}
	reflection.Register(s)
	return s
}

// grpcError maps service errors to gRPC status errors
func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing), models.IsInputError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRunTerminal), errors.Is(err, ErrReportNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

type runIDRequest struct {
	RunID string `json:"run_id"`
}

type getReportRequest struct {
	RunID     string `json:"run_id"`
	Precision *int   `json:"precision,omitempty"`
}

type listRunsRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Status string `json:"status,omitempty"`
}

type streamRunEventsRequest struct {
	RunID      string `json:"run_id"`
	IntervalMs int64  `json:"interval_ms,omitempty"`
}

func decodeRequest(in *structpb.Struct, v any) error {
	if err := DecodeStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request: "+err.Error())
	}
	return nil
}

func encodeResponse(v any) (*structpb.Struct, error) {
	out, err := EncodeStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response: "+err.Error())
	}
	return out, nil
}

func (s *ResilienceGRPCServer) decodeRunID(in *structpb.Struct) (string, error) {
	var req runIDRequest
	if err := decodeRequest(in, &req); err != nil {
		return "", err
	}
	if req.RunID == "" {
		return "", status.Error(codes.InvalidArgument, "run_id is required")
	}
	return req.RunID, nil
}

func (s *ResilienceGRPCServer) CreateRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createRunRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if req.Input == nil {
		return nil, status.Error(codes.InvalidArgument, "input is required")
	}
	if req.Input.CallbackURL != "" {
		if err := validateCallbackURL(req.Input.CallbackURL); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	if _, err := s.Executor.BuildEngine(req.Input); err != nil {
		return nil, grpcError(err)
	}

	rec, err := s.store.Create(req.RunID, req.Input)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run created", "run_id", rec.Run.ID)

	if req.Start {
		if rec, err = s.Executor.Start(rec.Run.ID); err != nil {
			return nil, grpcError(err)
		}
		logger.Info("run started (executor)", "run_id", rec.Run.ID)
	}
	return encodeResponse(map[string]any{"run": rec.Run})
}

func (s *ResilienceGRPCServer) StartRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	runID, err := s.decodeRunID(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.Executor.Start(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run started (executor)", "run_id", runID)
	return encodeResponse(map[string]any{"run": updated.Run})
}

func (s *ResilienceGRPCServer) StopRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	runID, err := s.decodeRunID(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run cancelled", "run_id", runID)
	return encodeResponse(map[string]any{"run": updated.Run})
}

func (s *ResilienceGRPCServer) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	runID, err := s.decodeRunID(in)
	if err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return encodeResponse(map[string]any{"run": rec.Run})
}

func (s *ResilienceGRPCServer) GetReport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req getReportRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(req.RunID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	if rec.Report == nil {
		return nil, grpcError(ErrReportNotReady)
	}

	report := rec.Report
	if req.Precision != nil {
		if *req.Precision < 0 || *req.Precision > 15 {
			return nil, status.Error(codes.InvalidArgument, "precision must be between 0 and 15")
		}
		report = report.Round(*req.Precision)
	}
	return encodeResponse(map[string]any{"report": report})
}

func (s *ResilienceGRPCServer) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRunsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	limit := 50
	if req.Limit > 0 {
		limit = min(req.Limit, 1000)
	}
	var statusFilter models.RunStatus
	if req.Status != "" {
		if statusFilter = models.ParseRunStatus(req.Status); statusFilter == "" {
			return nil, status.Error(codes.InvalidArgument, "unknown status: "+req.Status)
		}
	}

	recs := s.store.ListFiltered(limit, req.Offset, statusFilter)
	runs := make([]*models.Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}
	return encodeResponse(map[string]any{"runs": runs})
}

func (s *ResilienceGRPCServer) StreamRunEvents(in *structpb.Struct, stream ResilienceService_StreamRunEventsServer) error {
	var req streamRunEventsRequest
	if err := decodeRequest(in, &req); err != nil {
		return err
	}
	if req.RunID == "" {
		return status.Error(codes.InvalidArgument, "run_id is required")
	}

	interval := defaultWatchInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	err := s.store.Watch(stream.Context(), req.RunID, interval, func(ev RunEvent) error {
		msg, err := EncodeStruct(ev)
		if err != nil {
			return status.Error(codes.Internal, "encode event: "+err.Error())
		}
		return stream.Send(msg)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRunNotFound):
		return grpcError(err)
	case stream.Context().Err() != nil:
		return status.FromContextError(stream.Context().Err()).Err()
	default:
		return err
	}
}
