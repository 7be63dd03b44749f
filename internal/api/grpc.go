package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
	"github.com/victornm/geoquiz/internal/session"
)

const QuizServiceName = "geoquiz.v1.QuizService"

// QuizServiceServer exposes the quiz over gRPC. Messages are google.protobuf.Struct
// values carrying the same fields as the HTTP API.
type QuizServiceServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NextQuestion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitAnswer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type quizMethod func(QuizServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var quizServiceDesc = grpc.ServiceDesc{
	ServiceName: QuizServiceName,
	HandlerType: (*QuizServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler("StartSession", QuizServiceServer.StartSession)},
		{MethodName: "NextQuestion", Handler: unaryHandler("NextQuestion", QuizServiceServer.NextQuestion)},
		{MethodName: "SubmitAnswer", Handler: unaryHandler("SubmitAnswer", QuizServiceServer.SubmitAnswer)},
		{MethodName: "GetHistory", Handler: unaryHandler("GetHistory", QuizServiceServer.GetHistory)},
		{MethodName: "EndSession", Handler: unaryHandler("EndSession", QuizServiceServer.EndSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoquiz/v1/quiz.proto",
}

func RegisterQuizServiceServer(s grpc.ServiceRegistrar, srv QuizServiceServer) {
	s.RegisterService(&quizServiceDesc, srv)
}

// unaryHandler adapts call to the signature of grpc.MethodDesc.Handler.
func unaryHandler(name string, call quizMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + QuizServiceName + "/" + name

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		s := srv.(QuizServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// QuizServiceClient is the client side of QuizServiceServer.
type QuizServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewQuizServiceClient(cc grpc.ClientConnInterface) *QuizServiceClient {
	return &QuizServiceClient{cc: cc}
}

func (c *QuizServiceClient) invoke(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, errors.InvalidArgument("invalid request: %v", err)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+QuizServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *QuizServiceClient) StartSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "StartSession", map[string]any{"session_id": sessionID}, opts...)
}

func (c *QuizServiceClient) NextQuestion(ctx context.Context, sessionID string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "NextQuestion", map[string]any{"session_id": sessionID}, opts...)
}

func (c *QuizServiceClient) SubmitAnswer(ctx context.Context, sessionID, answer string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "SubmitAnswer", map[string]any{"session_id": sessionID, "answer": answer}, opts...)
}

func (c *QuizServiceClient) GetHistory(ctx context.Context, sessionID string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "GetHistory", map[string]any{"session_id": sessionID}, opts...)
}

func (c *QuizServiceClient) EndSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, "EndSession", map[string]any{"session_id": sessionID}, opts...)
}

func (a *API) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req, "session_id", true)
	if err != nil {
		return nil, err
	}

	st, err := a.qss.Start(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}

	return toStruct(map[string]any{
		"session_id":     id,
		"score":          st.Score,
		"total_answered": st.TotalAnswered,
		"difficulty":     session.CurrentDifficulty(st).String(),
	})
}

func (a *API) NextQuestion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req, "session_id", true)
	if err != nil {
		return nil, err
	}

	v, err := a.qss.NextQuestion(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}

	var image any
	if v.Image != "" {
		image = v.Image
	}

	return toStruct(map[string]any{
		"question":   v.Question,
		"options":    anySlice(v.Options),
		"hint":       v.Hint,
		"image":      image,
		"difficulty": v.Difficulty.String(),
	})
}

func (a *API) SubmitAnswer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req, "session_id", true)
	if err != nil {
		return nil, err
	}

	answer, err := stringField(req, "answer", false)
	if err != nil {
		return nil, err
	}

	res, err := a.qss.SubmitAnswer(ctx, id, answer)
	if err != nil {
		return nil, grpcError(err)
	}

	return toStruct(map[string]any{
		"is_correct":     res.IsCorrect,
		"correct_answer": res.CorrectAnswer,
		"score":          res.Score,
		"total_answered": res.TotalAnswered,
		"new_difficulty": res.NewDifficulty.String(),
	})
}

func (a *API) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req, "session_id", true)
	if err != nil {
		return nil, err
	}

	h, err := a.qss.History(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}

	entries := make([]any, 0, len(h.History))
	for _, e := range h.History {
		entries = append(entries, historyEntry(e))
	}

	return toStruct(map[string]any{
		"history":        entries,
		"score":          h.Score,
		"total_answered": h.TotalAnswered,
		"accuracy":       h.Accuracy.StringFixed(2),
	})
}

func (a *API) EndSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req, "session_id", true)
	if err != nil {
		return nil, err
	}

	if err := a.qss.End(ctx, id); err != nil {
		return nil, grpcError(err)
	}

	return toStruct(map[string]any{"session_id": id})
}

func historyEntry(e domain.HistoryEntry) map[string]any {
	return map[string]any{
		"question":       e.QuestionText,
		"user_answer":    e.UserAnswer,
		"correct_answer": e.CorrectAnswer,
		"is_correct":     e.IsCorrect,
		"difficulty":     e.Difficulty.String(),
		"timestamp":      e.Timestamp.Format(time.RFC3339Nano),
		"answered_at":    e.AnsweredAt.Format(time.RFC3339Nano),
	}
}

// stringField reads a string field from req. A missing field is an error; an empty
// one only when required is set.
func stringField(req *structpb.Struct, name string, required bool) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", errors.InvalidArgument("%s is required", name)
	}

	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", errors.InvalidArgument("%s must be a string", name)
	}
	if required && s.StringValue == "" {
		return "", errors.InvalidArgument("%s is required", name)
	}

	return s.StringValue, nil
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return s, nil
}

// anySlice converts to the []any form structpb accepts.
func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// grpcError makes sure every error leaving the service carries a status code.
func grpcError(err error) error {
	return errors.Convert(err)
}
