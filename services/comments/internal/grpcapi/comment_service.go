// Package grpcapi serves the comment API over gRPC for internal callers.
package grpcapi

import (
	"context"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/service"
)

// CommentService implements CommentServiceServer on top of the
// transport-neutral service.
type CommentService struct {
	Comments *service.Service
	Log      *zap.Logger
}

var _ CommentServiceServer = (*CommentService)(nil)

// callerFromMD reads the identity a trusted gateway put in metadata. A
// missing user_id is an anonymous caller, not an error; the service decides.
func callerFromMD(ctx context.Context) domain.Caller {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Caller{}
	}
	first := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}
	return domain.Caller{UserID: first("user_id"), Role: first("role")}
}

func str(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

func num(in *structpb.Struct, key string, fallback int) (int, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return fallback, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return fallback, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, domain.Invalid(key, "must be an integer")
	}
	return int(n.NumberValue), nil
}

// strList reads an array of strings. A present non-array value is a
// validation error; an absent one is an empty list.
func strList(in *structpb.Struct, key string) ([]string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list, isList := v.GetKind().(*structpb.Value_ListValue)
	if !isList {
		return nil, domain.Invalid(key, "must be an array")
	}
	out := make([]string, 0, len(list.ListValue.GetValues()))
	for _, item := range list.ListValue.GetValues() {
		s, isStr := item.GetKind().(*structpb.Value_StringValue)
		if !isStr {
			return nil, domain.Invalid(key, "must contain strings")
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// toStruct renders a view through its JSON form so gRPC and HTTP clients
// see identical documents.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CommentService) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *CommentService) reply(v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	out, err := toStruct(v)
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	return out, nil
}

func (s *CommentService) CreateComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var ip string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			ip = strings.TrimSpace(strings.Split(vals[0], ",")[0])
		}
	}
	return s.reply(s.Comments.Create(ctx, callerFromMD(ctx), service.CreateInput{
		Slug:     str(req, "slug"),
		ParentID: str(req, "parent_id"),
		Text:     req.GetFields()["text"].GetStringValue(),
		ClientIP: ip,
	}))
}

func (s *CommentService) GetComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.Comments.Get(ctx, callerFromMD(ctx), str(req, "comment_id")))
}

func (s *CommentService) ListComments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := num(req, "limit", 0)
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	return s.reply(s.Comments.ListTopLevel(ctx, callerFromMD(ctx), str(req, "slug"), limit, str(req, "cursor")))
}

func (s *CommentService) ListReplies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := num(req, "limit", 0)
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	return s.reply(s.Comments.ListReplies(ctx, callerFromMD(ctx), str(req, "comment_id"), limit, str(req, "cursor")))
}

func (s *CommentService) EditComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.Comments.Edit(ctx, callerFromMD(ctx), str(req, "comment_id"), req.GetFields()["text"].GetStringValue()))
}

func (s *CommentService) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := str(req, "comment_id")
	entries, err := s.Comments.History(ctx, callerFromMD(ctx), id)
	return s.reply(map[string]any{"comment_id": id, "revisions": entries}, err)
}

func (s *CommentService) DiffRevisions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from, err := num(req, "from", -1)
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	to, err := num(req, "to", -1)
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	return s.reply(s.Comments.Diff(ctx, callerFromMD(ctx), str(req, "comment_id"), from, to))
}

func (s *CommentService) ReactComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.Comments.React(ctx, callerFromMD(ctx), str(req, "comment_id"), str(req, "kind")))
}

func (s *CommentService) ReportComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.Comments.Report(ctx, callerFromMD(ctx), str(req, "comment_id"), str(req, "reason")))
}

func (s *CommentService) DeleteComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.Comments.Delete(ctx, callerFromMD(ctx), str(req, "comment_id")))
}

func (s *CommentService) BulkDeleteComments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ids, err := strList(req, "ids")
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	n, err := s.Comments.BulkDelete(ctx, callerFromMD(ctx), ids)
	return s.reply(map[string]any{"deleted_count": n}, err)
}

func (s *CommentService) BulkUnreact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ids, err := strList(req, "ids")
	if err != nil {
		return nil, toStatus(s.log(), err)
	}
	n, err := s.Comments.BulkUnreact(ctx, callerFromMD(ctx), ids, str(req, "kind"))
	return s.reply(map[string]any{"removed_count": n}, err)
}
