package grpcapi

import (
	"context"
	"net"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/quillnote/notes-platform/services/comments/internal/config"
	"github.com/quillnote/notes-platform/services/comments/internal/service"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
	"github.com/quillnote/notes-platform/services/comments/internal/textfilter"
)

func ctxWithUser(userID string) context.Context {
	md := metadata.New(map[string]string{"user_id": userID})
	return metadata.NewIncomingContext(context.Background(), md)
}

func ctxNoUser() context.Context {
	return context.Background()
}

func newService() *CommentService {
	return &CommentService{Comments: service.New(service.Deps{
		Store:  store.NewInMemoryCommentStore(),
		Text:   textfilter.New(),
		Policy: config.DefaultPolicy(),
	})}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	return s
}

func reason(t *testing.T, err error) string {
	t.Helper()
	st, _ := status.FromError(err)
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			if info.GetDomain() != errorDomain {
				t.Fatalf("expected domain %q, got %q", errorDomain, info.GetDomain())
			}
			return info.GetReason()
		}
	}
	t.Fatalf("no ErrorInfo in %v", err)
	return ""
}

func TestCreateComment_Success(t *testing.T) {
	svc := newService()
	resp, err := svc.CreateComment(ctxWithUser("user-a"), mustStruct(t, map[string]any{
		"slug": "post/1",
		"text": "Great post!",
	}))
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	f := resp.GetFields()
	if f["id"].GetStringValue() == "" {
		t.Fatal("expected non-empty id")
	}
	if got := f["author_id"].GetStringValue(); got != "user-a" {
		t.Fatalf("expected author_id 'user-a', got %q", got)
	}
	if got := f["content"].GetStringValue(); got != "Great post!" {
		t.Fatalf("unexpected content %q", got)
	}
	if got := f["depth"].GetNumberValue(); got != 0 {
		t.Fatalf("expected depth 0, got %v", got)
	}
}

func TestCreateComment_Unauthenticated(t *testing.T) {
	svc := newService()
	_, err := svc.CreateComment(ctxNoUser(), mustStruct(t, map[string]any{"slug": "p", "text": "x"}))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestCreateComment_ValidationDetails(t *testing.T) {
	svc := newService()
	_, err := svc.CreateComment(ctxWithUser("user-a"), mustStruct(t, map[string]any{"slug": "p", "text": ""}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	st, _ := status.FromError(err)
	var field string
	for _, d := range st.Details() {
		if bad, ok := d.(*errdetails.BadRequest); ok && len(bad.GetFieldViolations()) > 0 {
			field = bad.GetFieldViolations()[0].GetField()
		}
	}
	if field != "text" {
		t.Fatalf("expected field violation on text, got %q", field)
	}
}

func TestListAndReplies(t *testing.T) {
	svc := newService()
	ctx := ctxWithUser("user-a")
	root, err := svc.CreateComment(ctx, mustStruct(t, map[string]any{"slug": "p", "text": "root"}))
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	rootID := root.GetFields()["id"].GetStringValue()
	if _, err := svc.CreateComment(ctx, mustStruct(t, map[string]any{"parent_id": rootID, "text": "reply"})); err != nil {
		t.Fatalf("create reply: %v", err)
	}

	list, err := svc.ListComments(ctxNoUser(), mustStruct(t, map[string]any{"slug": "p", "limit": 10}))
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	items := list.GetFields()["items"].GetListValue().GetValues()
	if len(items) != 1 {
		t.Fatalf("expected 1 top-level comment, got %d", len(items))
	}
	if !items[0].GetStructValue().GetFields()["has_replies"].GetBoolValue() {
		t.Fatal("expected has_replies")
	}

	replies, err := svc.ListReplies(ctxNoUser(), mustStruct(t, map[string]any{"comment_id": rootID}))
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if n := len(replies.GetFields()["items"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("expected 1 reply, got %d", n)
	}
}

func TestListComments_BadLimit(t *testing.T) {
	svc := newService()
	_, err := svc.ListComments(ctxNoUser(), mustStruct(t, map[string]any{"slug": "p", "limit": "ten"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestReactAndDelete(t *testing.T) {
	svc := newService()
	c, err := svc.CreateComment(ctxWithUser("user-a"), mustStruct(t, map[string]any{"slug": "p", "text": "x"}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := c.GetFields()["id"].GetStringValue()

	r, err := svc.ReactComment(ctxWithUser("user-b"), mustStruct(t, map[string]any{"comment_id": id, "kind": "dislike"}))
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if got := r.GetFields()["score"].GetNumberValue(); got != -1 {
		t.Fatalf("expected score -1, got %v", got)
	}

	_, err = svc.DeleteComment(ctxWithUser("user-b"), mustStruct(t, map[string]any{"comment_id": id}))
	if status.Code(err) != codes.PermissionDenied || reason(t, err) != "FORBIDDEN" {
		t.Fatalf("expected PermissionDenied/FORBIDDEN, got %v", err)
	}

	md := metadata.New(map[string]string{"user_id": "mod-1", "role": "moderator"})
	d, err := svc.DeleteComment(metadata.NewIncomingContext(context.Background(), md),
		mustStruct(t, map[string]any{"comment_id": id}))
	if err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if got := d.GetFields()["content"].GetStringValue(); got != "[deleted]" {
		t.Fatalf("expected tombstone, got %q", got)
	}
}

func TestBulkDelete_NonArray(t *testing.T) {
	svc := newService()
	_, err := svc.BulkDeleteComments(ctxWithUser("user-a"), mustStruct(t, map[string]any{"ids": "abc"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestNotFoundReason(t *testing.T) {
	svc := newService()
	_, err := svc.GetComment(ctxNoUser(), mustStruct(t, map[string]any{"comment_id": "missing"}))
	if status.Code(err) != codes.NotFound || reason(t, err) != "NOT_FOUND" {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRegisteredService_OverTheWire(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterCommentServiceServer(srv, newService())
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx := metadata.AppendToOutgoingContext(context.Background(), "user_id", "user-a")
	out := &structpb.Struct{}
	err = conn.Invoke(ctx, "/"+ServiceName+"/CreateComment",
		mustStruct(t, map[string]any{"slug": "post/1", "text": "over grpc"}), out)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := out.GetFields()["slug"].GetStringValue(); got != "post/1" {
		t.Fatalf("expected slug post/1, got %q", got)
	}

	err = conn.Invoke(context.Background(), "/"+ServiceName+"/ReactComment",
		mustStruct(t, map[string]any{"comment_id": out.GetFields()["id"].GetStringValue(), "kind": "like"}), &structpb.Struct{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated over the wire, got %v", err)
	}
}
