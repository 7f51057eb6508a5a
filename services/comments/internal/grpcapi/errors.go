package grpcapi

import (
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
)

const errorDomain = "comments"

func withInfo(c codes.Code, reason, msg string, extra ...*errdetails.BadRequest) error {
	st := status.New(c, msg)
	info := &errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}
	var (
		st2 *status.Status
		err error
	)
	if len(extra) > 0 {
		st2, err = st.WithDetails(info, extra[0])
	} else {
		st2, err = st.WithDetails(info)
	}
	if err != nil {
		return st.Err()
	}
	return st2.Err()
}

// toStatus translates a domain error into a gRPC status carrying an
// ErrorInfo reason the gateway can forward unchanged.
func toStatus(log *zap.Logger, err error) error {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		bad := &errdetails.BadRequest{FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{Field: ve.Field, Description: ve.Reason},
		}}
		return withInfo(codes.InvalidArgument, "VALIDATION_FAILED", ve.Error(), bad)
	case errors.Is(err, domain.ErrValidation):
		return withInfo(codes.InvalidArgument, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return withInfo(codes.Unauthenticated, "UNAUTHENTICATED", "missing user_id in metadata")
	case errors.Is(err, domain.ErrForbidden):
		return withInfo(codes.PermissionDenied, "FORBIDDEN", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return withInfo(codes.NotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrDepthLimitExceeded):
		return withInfo(codes.FailedPrecondition, "DEPTH_LIMIT_EXCEEDED", err.Error())
	default:
		log.Error("rpc failed", zap.Error(err))
		return withInfo(codes.Internal, "INTERNAL", "internal error")
	}
}
