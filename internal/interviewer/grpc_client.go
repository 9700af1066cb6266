package interviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName             = "interviewer.v1.Interviewer"
	methodGenerateQuestions = "/" + serviceName + "/GenerateQuestions"
	methodGenerateFeedback  = "/" + serviceName + "/GenerateFeedback"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GRPCConfig holds configuration for the gRPC client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   2 * time.Minute,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCBackend calls a remote interviewer service.
type GRPCBackend struct {
	conn           *grpc.ClientConn
	addr           string
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewGRPCBackend connects to the interviewer service and waits until it is ready.
func NewGRPCBackend(cfg GRPCConfig, logger *slog.Logger) (*GRPCBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to interviewer at %s: %w", cfg.Address, err)
	}

	// Fail fast on bad interviewer endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("interviewer at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to interviewer service", "address", cfg.Address)

	return &GRPCBackend{
		conn:           conn,
		addr:           cfg.Address,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GRPCBackend) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close interviewer connection: %w", err)
	}
	return nil
}

// GenerateQuestions calls the remote GenerateQuestions method.
func (c *GRPCBackend) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := c.invoke(ctx, methodGenerateQuestions, req, &out); err != nil {
		c.logger.Error("GenerateQuestions failed", "error", err, "role", req.Role)
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	if len(out.Questions) == 0 {
		return nil, ErrEmptyQuestions
	}
	return out.Questions, nil
}

// GenerateFeedback calls the remote GenerateFeedback method.
func (c *GRPCBackend) GenerateFeedback(ctx context.Context, in FeedbackInput) (*Assessment, error) {
	if len(in.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}
	var out Assessment
	if err := c.invoke(ctx, methodGenerateFeedback, in, &out); err != nil {
		c.logger.Error("GenerateFeedback failed", "error", err, "interview_id", in.InterviewID)
		return nil, fmt.Errorf("generate feedback: %w", err)
	}
	return normalizeAssessment(&out), nil
}

func (c *GRPCBackend) invoke(ctx context.Context, method string, in, out any) error {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp, grpc.WaitForReady(true)); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("convert payload: %w", err)
	}
	return s, nil
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("convert payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
