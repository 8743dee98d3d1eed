package pruner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// #region service
const (
	serviceName = "torchcat.pruning.Pruner"
	pruneMethod = "/" + serviceName + "/Prune"

	// DefaultTimeout bounds a single remote prune call.
	DefaultTimeout = 30 * time.Second
)

// PrunerServer is the server side of the pruning service.
type PrunerServer interface {
	Prune(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PrunerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Prune", Handler: pruneHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "torchcat/pruning/pruner.proto",
}

func pruneHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PrunerServer).Prune(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pruneMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PrunerServer).Prune(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service

// #region client
// RemotePruner delegates pruning to a gRPC pruning service. The service
// answers with a shape-only network.
type RemotePruner struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	target  string
	timeout time.Duration
}

// NewRemotePruner connects to the pruning service at addr.
func NewRemotePruner(addr string, timeout time.Duration) (*RemotePruner, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	r := NewRemotePrunerWithConn(conn, addr, timeout)
	r.conn = conn
	return r, nil
}

// NewRemotePrunerWithConn wraps an existing connection. The caller keeps
// ownership of cc.
func NewRemotePrunerWithConn(cc grpc.ClientConnInterface, target string, timeout time.Duration) *RemotePruner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemotePruner{cc: cc, target: target, timeout: timeout}
}

// ID identifies the remote service in cache keys.
func (r *RemotePruner) ID() string { return "remote:" + r.target }

// Close shuts down a connection opened by NewRemotePruner.
func (r *RemotePruner) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Prune sends the model's shapes and the solution to the service.
func (r *RemotePruner) Prune(m model.Model, s solution.Solution) (model.Model, error) {
	net, ok := m.(*model.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedModel, m)
	}
	req, err := encodeRequest(net, s)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := r.cc.Invoke(ctx, pruneMethod, req, resp); err != nil {
		return nil, fromStatus(err)
	}
	out, err := decodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("prune rpc: %w", err)
	}
	return out, nil
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("prune rpc: %w", err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", solution.ErrMalformed, st.Message())
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrUnsupportedModel, st.Message())
	}
	return fmt.Errorf("prune rpc: %w", err)
}

// #endregion client

// #region server
type server struct {
	pruner Pruner
	logger *zap.Logger
}

// RegisterServer serves p on s under the pruning service.
func RegisterServer(s *grpc.Server, p Pruner, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.RegisterService(&serviceDesc, &server{pruner: p, logger: logger})
}

func (s *server) Prune(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	net, sol, err := decodeRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := net.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	pruned, err := s.pruner.Prune(net, sol)
	if err != nil {
		s.logger.Debug("prune rejected",
			zap.String("network", net.Name),
			zap.String("solution", sol.Key()),
			zap.Error(err))
		return nil, toStatus(err)
	}
	out, ok := pruned.(*model.Network)
	if !ok {
		return nil, status.Errorf(codes.Internal, "pruner returned %T", pruned)
	}
	resp, err := encodeResponse(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, solution.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrUnsupportedModel):
		return status.Error(codes.Unimplemented, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion server
