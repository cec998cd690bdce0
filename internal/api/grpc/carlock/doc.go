// Package carlock implements the gRPC transport for the lock service.
//
// The service is described by a hand-written grpc.ServiceDesc whose messages
// are protobuf well-known types (Empty and Struct), so no generated code is
// needed on either side. Codec helpers in this package are shared with the
// client.
package carlock
