package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"
)

// SearchServiceName is the fully qualified gRPC service name.
const SearchServiceName = "kquery.v1.SearchService"

// SelectMethod is the full method name of the Select RPC.
const SelectMethod = "/" + SearchServiceName + "/Select"

// SearchServiceServer is the server API for the search service. Requests and
// responses are structpb.Struct so the filter language needs no schema.
type SearchServiceServer interface {
	Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var searchServiceDesc = grpc.ServiceDesc{
	ServiceName: SearchServiceName,
	HandlerType: (*SearchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Select", Handler: selectHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kquery/v1/search.proto",
}

func selectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SearchServiceServer).Select(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SelectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SearchServiceServer).Select(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// searchService adapts Server to SearchServiceServer.
type searchService struct{ s *Server }

func (g searchService) Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := selectRequestFromProto(in)
	if err != nil {
		return nil, grpcError(err)
	}
	page, err := g.s.search(ctx, req.Entity, req.Request)
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := pageToProto(req.Entity, page)
	if err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the search service, health and reflection, and returns the
// server ready to serve.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
			PrincipalInterceptor,
		),
	)

	srv.RegisterService(&searchServiceDesc, searchService{s: s})

	hs := health.NewServer()
	hs.SetServingStatus(SearchServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}
