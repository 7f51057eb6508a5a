package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "notes.comments.v1.CommentService"

// CommentServiceServer is the server side of notes.comments.v1.CommentService.
// Requests and responses are google.protobuf.Struct documents using the same
// field names as the HTTP JSON bodies.
type CommentServiceServer interface {
	CreateComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListComments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReplies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DiffRevisions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReactComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BulkDeleteComments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BulkUnreact(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type rpc func(CommentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call rpc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CommentServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(CommentServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateComment", CommentServiceServer.CreateComment),
		unary("GetComment", CommentServiceServer.GetComment),
		unary("ListComments", CommentServiceServer.ListComments),
		unary("ListReplies", CommentServiceServer.ListReplies),
		unary("EditComment", CommentServiceServer.EditComment),
		unary("GetHistory", CommentServiceServer.GetHistory),
		unary("DiffRevisions", CommentServiceServer.DiffRevisions),
		unary("ReactComment", CommentServiceServer.ReactComment),
		unary("ReportComment", CommentServiceServer.ReportComment),
		unary("DeleteComment", CommentServiceServer.DeleteComment),
		unary("BulkDeleteComments", CommentServiceServer.BulkDeleteComments),
		unary("BulkUnreact", CommentServiceServer.BulkUnreact),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notes/comments/v1/comments.proto",
}

func RegisterCommentServiceServer(s grpc.ServiceRegistrar, srv CommentServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
