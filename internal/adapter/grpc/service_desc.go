package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified name of the payment gateway service
const ServiceName = "roomsplit.payments.v1.PaymentGateway"

// Method names of the payment gateway service
const (
	MethodInitiate         = "Initiate"
	MethodConfirm          = "Confirm"
	MethodCancel           = "Cancel"
	MethodGetTransaction   = "GetTransaction"
	MethodListEnabledBanks = "ListEnabledBanks"
)

// PaymentGatewayServer is the server API of the payment gateway service.
// Requests and responses travel as google.protobuf.Struct with snake_case keys.
type PaymentGatewayServer interface {
	Initiate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Confirm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEnabledBanks(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// PaymentGatewayServiceDesc is the grpc.ServiceDesc for the payment gateway service
var PaymentGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodInitiate, Handler: unaryHandler(MethodInitiate, PaymentGatewayServer.Initiate)},
		{MethodName: MethodConfirm, Handler: unaryHandler(MethodConfirm, PaymentGatewayServer.Confirm)},
		{MethodName: MethodCancel, Handler: unaryHandler(MethodCancel, PaymentGatewayServer.Cancel)},
		{MethodName: MethodGetTransaction, Handler: unaryHandler(MethodGetTransaction, PaymentGatewayServer.GetTransaction)},
		{MethodName: MethodListEnabledBanks, Handler: unaryHandler(MethodListEnabledBanks, PaymentGatewayServer.ListEnabledBanks)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roomsplit/payments/v1/payment_gateway.proto",
}

// RegisterPaymentGatewayServer registers srv on the given gRPC server
func RegisterPaymentGatewayServer(s grpc.ServiceRegistrar, srv PaymentGatewayServer) {
	s.RegisterService(&PaymentGatewayServiceDesc, srv)
}

// FullMethod returns the wire path of a payment gateway method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryCall func(PaymentGatewayServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

type methodHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func unaryHandler(method string, call unaryCall) methodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PaymentGatewayServer), ctx, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		return interceptor(ctx, in, info, handler)
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
