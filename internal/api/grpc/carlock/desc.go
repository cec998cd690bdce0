package carlock

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "carlock.v1.LockService"
	// MethodGetStatus is the full method name of GetStatus.
	MethodGetStatus = "/" + ServiceName + "/GetStatus"
	// MethodExecute is the full method name of Execute.
	MethodExecute = "/" + ServiceName + "/Execute"
)

// LockServiceServer is the server API of carlock.v1.LockService.
//
// Messages are well-known types: requests and responses are google.protobuf.Struct
// documents whose fields are described by NewExecuteRequest and StatusToStruct.
type LockServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Register attaches the lock service to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, srv LockServiceServer) {
	registrar.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carlock/v1/lock_service.proto",
}

func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(LockServiceServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodGetStatus,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func executeHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(LockServiceServer).Execute(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodExecute,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockServiceServer).Execute(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}
