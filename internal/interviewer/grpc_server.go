package interviewer

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// InterviewerServer is the server API of the interviewer gRPC service.
// Payloads are google.protobuf.Struct values with the JSON shape of
// QuestionRequest, FeedbackInput and Assessment.
type InterviewerServer interface {
	GenerateQuestions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GenerateFeedback(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterInterviewerServer registers srv with s.
func RegisterInterviewerServer(s grpc.ServiceRegistrar, srv InterviewerServer) {
	s.RegisterService(&interviewerServiceDesc, srv)
}

var interviewerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*InterviewerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateQuestions", Handler: generateQuestionsHandler},
		{MethodName: "GenerateFeedback", Handler: generateFeedbackHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "interviewer/v1/interviewer.proto",
}

func generateQuestionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InterviewerServer).GenerateQuestions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGenerateQuestions}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InterviewerServer).GenerateQuestions(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func generateFeedbackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InterviewerServer).GenerateFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGenerateFeedback}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InterviewerServer).GenerateFeedback(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BackendServer serves a Backend over gRPC.
type BackendServer struct {
	backend Backend
	logger  *slog.Logger
}

var _ InterviewerServer = (*BackendServer)(nil)

// NewBackendServer wraps backend as an InterviewerServer.
func NewBackendServer(backend Backend, logger *slog.Logger) *BackendServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackendServer{backend: backend, logger: logger}
}

// GenerateQuestions implements InterviewerServer.
func (s *BackendServer) GenerateQuestions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in QuestionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Role == "" || in.Amount <= 0 {
		return nil, status.Error(codes.InvalidArgument, "role and amount are required")
	}

	questions, err := s.backend.GenerateQuestions(ctx, in)
	if err != nil {
		s.logger.Error("GenerateQuestions backend failure", "error", err, "role", in.Role)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(struct {
		Questions []string `json:"questions"`
	}{questions})
}

// GenerateFeedback implements InterviewerServer.
func (s *BackendServer) GenerateFeedback(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in FeedbackInput
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if len(in.Transcript) == 0 {
		return nil, status.Error(codes.InvalidArgument, ErrEmptyTranscript.Error())
	}

	assessment, err := s.backend.GenerateFeedback(ctx, in)
	if err != nil {
		s.logger.Error("GenerateFeedback backend failure", "error", err, "interview_id", in.InterviewID)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(assessment)
}
