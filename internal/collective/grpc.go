package collective

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
)

const (
	serviceName = "racestrategy.collective.v1.Collective"

	// maxMessageBytes bounds a broadcast frame or a gathered chunk on the wire.
	maxMessageBytes = 1 << 30

	// shutdownGrace is how long Close waits for in-flight calls before cutting them off.
	shutdownGrace = 5 * time.Second
)

// jsonCodec carries the collective messages as JSON. Clients select it with the
// "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type joinRequest struct {
	Rank int `json:"rank"`
}

type joinReply struct {
	Rank int `json:"rank"`
	Size int `json:"size"`
}

type fetchRequest struct {
	Seq uint64 `json:"seq"`
}

type fetchReply struct {
	Frame []byte `json:"frame"`
}

type ackRequest struct {
	Seq     uint64 `json:"seq"`
	Rank    int    `json:"rank"`
	Failure string `json:"failure,omitempty"`
}

type ackReply struct{}

type submitRequest struct {
	Seq     uint64    `json:"seq"`
	Rank    int       `json:"rank"`
	Chunk   []float64 `json:"chunk"`
	Failure string    `json:"failure,omitempty"`
}

type submitReply struct{}

// collectiveServer is implemented by the coordinator side of the service.
type collectiveServer interface {
	Join(context.Context, *joinRequest) (*joinReply, error)
	Fetch(context.Context, *fetchRequest) (*fetchReply, error)
	Ack(context.Context, *ackRequest) (*ackReply, error)
	Submit(context.Context, *submitRequest) (*submitReply, error)
}

var collectiveServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*collectiveServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Join", Handler: unaryHandler("Join", collectiveServer.Join)},
		{MethodName: "Fetch", Handler: unaryHandler("Fetch", collectiveServer.Fetch)},
		{MethodName: "Ack", Handler: unaryHandler("Ack", collectiveServer.Ack)},
		{MethodName: "Submit", Handler: unaryHandler("Submit", collectiveServer.Submit)},
	},
	Streams: []grpc.StreamDesc{},
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryHandler[Req, Resp any](
	method string,
	call func(collectiveServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(collectiveServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(collectiveServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// hubServer exposes a hub to remote workers.
type hubServer struct {
	hub *hub
}

func (s *hubServer) Join(ctx context.Context, req *joinRequest) (*joinReply, error) {
	rank, err := s.hub.join(req.Rank)
	if err != nil {
		return nil, toStatus(err)
	}
	logging.FromContext(ctx).Info("Worker joined", "rank", rank, "size", s.hub.size)
	return &joinReply{Rank: rank, Size: s.hub.size}, nil
}

func (s *hubServer) Fetch(ctx context.Context, req *fetchRequest) (*fetchReply, error) {
	frame, err := s.hub.fetch(ctx, req.Seq)
	if err != nil {
		return nil, toStatus(err)
	}
	return &fetchReply{Frame: frame}, nil
}

func (s *hubServer) Ack(ctx context.Context, req *ackRequest) (*ackReply, error) {
	r, err := s.hub.arrive(req.Seq, opBroadcast, req.Rank, nil, remoteFailure(req.Failure))
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.hub.settle(ctx, r); err != nil {
		return nil, toStatus(err)
	}
	return &ackReply{}, nil
}

func (s *hubServer) Submit(_ context.Context, req *submitRequest) (*submitReply, error) {
	chunk := req.Chunk
	if chunk == nil {
		chunk = []float64{}
	}
	if _, err := s.hub.arrive(req.Seq, opGather, req.Rank, chunk, remoteFailure(req.Failure)); err != nil {
		return nil, toStatus(err)
	}
	return &submitReply{}, nil
}

func remoteFailure(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

func failureMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrProtocol):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func fromStatus(ctx context.Context, method string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	switch st.Code() {
	case codes.Aborted:
		return fmt.Errorf("%w: %s: %s", ErrProtocol, method, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s: %s", ErrClosed, method, st.Message())
	default:
		return fmt.Errorf("%s: %w", method, err)
	}
}

// Coordinator is the root of a group whose other ranks are remote workers. It serves
// the collective service and takes part in every operation as rank 0.
type Coordinator struct {
	*Endpoint

	server   *grpc.Server
	listener net.Listener
}

var _ Communicator = (*Coordinator)(nil)

// NewCoordinator listens on address and serves a group of size ranks. Workers may join
// before or after the first operation is issued.
func NewCoordinator(ctx context.Context, address string, size int) (*Coordinator, error) {
	h, err := newHub(size)
	if err != nil {
		return nil, err
	}
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}

	logger := logging.FromContext(ctx)
	server := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.MaxSendMsgSize(maxMessageBytes),
		grpc.ChainUnaryInterceptor(func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(logging.IntoContext(ctx, logger), req)
		}),
	)
	server.RegisterService(&collectiveServiceDesc, &hubServer{hub: h})

	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error(err, "Collective service stopped")
		}
	}()
	logger.Info("Coordinator listening", "address", lis.Addr().String(), "size", size)

	return &Coordinator{
		Endpoint: &Endpoint{hub: h, rank: Root},
		server:   server,
		listener: lis,
	}, nil
}

// Addr is the address workers dial.
func (c *Coordinator) Addr() string {
	return c.listener.Addr().String()
}

// Close closes the group and stops the service, letting in-flight calls finish for a
// short grace period.
func (c *Coordinator) Close() error {
	c.hub.close()
	stopped := make(chan struct{})
	go func() {
		c.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownGrace):
		c.server.Stop()
	}
	return nil
}

// Worker is a non-root rank connected to a Coordinator over gRPC.
type Worker struct {
	conn *grpc.ClientConn
	rank int
	size int
	seq  uint64
}

var _ Communicator = (*Worker)(nil)

// Dial connects to the coordinator at address and joins its group as rank, or as the
// lowest free rank when rank is AnyRank. The join waits for the coordinator to come up
// until ctx expires.
func Dial(ctx context.Context, address string, rank int) (*Worker, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(jsonCodec{}.Name()),
			grpc.MaxCallRecvMsgSize(maxMessageBytes),
			grpc.MaxCallSendMsgSize(maxMessageBytes),
			grpc.WaitForReady(true),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	reply := new(joinReply)
	if err := conn.Invoke(ctx, fullMethod("Join"), &joinRequest{Rank: rank}, reply); err != nil {
		_ = conn.Close()
		return nil, fromStatus(ctx, "join", err)
	}
	logging.FromContext(ctx).Info("Joined coordinator", "address", address, "rank", reply.Rank, "size", reply.Size)
	return &Worker{conn: conn, rank: reply.Rank, size: reply.Size}, nil
}

func (w *Worker) Rank() int { return w.rank }

func (w *Worker) Size() int { return w.size }

func (w *Worker) next() uint64 {
	seq := w.seq
	w.seq++
	return seq
}

// Broadcast fetches the root's frame, verifies it and acknowledges the outcome.
// A Worker never originates a broadcast, so payload is ignored.
func (w *Worker) Broadcast(ctx context.Context, _ []byte) ([]byte, error) {
	seq := w.next()
	fetched := new(fetchReply)
	if err := w.conn.Invoke(ctx, fullMethod("Fetch"), &fetchRequest{Seq: seq}, fetched); err != nil {
		return nil, fromStatus(ctx, "fetch", err)
	}
	payload, verr := decodeFrame(fetched.Frame)
	ack := &ackRequest{Seq: seq, Rank: w.rank, Failure: failureMessage(verr)}
	if err := w.conn.Invoke(ctx, fullMethod("Ack"), ack, new(ackReply)); err != nil {
		return nil, fromStatus(ctx, "ack", err)
	}
	return payload, nil
}

func (w *Worker) Gather(ctx context.Context, chunk []float64, failure error) ([][]float64, error) {
	seq := w.next()
	req := &submitRequest{Seq: seq, Rank: w.rank, Chunk: chunk, Failure: failureMessage(failure)}
	if err := w.conn.Invoke(ctx, fullMethod("Submit"), req, new(submitReply)); err != nil {
		return nil, fromStatus(ctx, "submit", err)
	}
	return nil, nil
}

func (w *Worker) Close() error {
	return w.conn.Close()
}
