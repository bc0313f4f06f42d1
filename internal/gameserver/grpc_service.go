package gameserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/npcintent/internal/game/interaction"
	"github.com/cory-johannsen/npcintent/internal/game/tag"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "npcintent.v1.InteractionService"

// Request field names carried in the google.protobuf.Struct payload.
const (
	FieldNPCID       = "npc_id"
	FieldRequesterID = "requester_id"
	FieldIntent      = "intent"
)

const (
	methodInteract          = "/" + ServiceName + "/Interact"
	methodHandleInteraction = "/" + ServiceName + "/HandleInteraction"
)

// InteractionServer is the server API of the interaction service.
type InteractionServer interface {
	Interact(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	HandleInteraction(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// InteractionServiceDesc describes the service for grpc.Server registration.
var InteractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InteractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Interact", Handler: interactHandler},
		{MethodName: "HandleInteraction", Handler: handleInteractionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "npcintent/v1/interaction.proto",
}

// RegisterInteractionServer registers srv on s.
func RegisterInteractionServer(s grpc.ServiceRegistrar, srv InteractionServer) {
	s.RegisterService(&InteractionServiceDesc, srv)
}

func interactHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InteractionServer).Interact(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInteract}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InteractionServer).Interact(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func handleInteractionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InteractionServer).HandleInteraction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHandleInteraction}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InteractionServer).HandleInteraction(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// InteractionService exposes a Host's two entry points over gRPC.
//
// Only transport conditions produce errors: an unknown instance is NotFound
// and a cancelled call carries its context status. Whether the router
// dispatched, rejected, or dropped a request is never revealed.
type InteractionService struct {
	host   *Host
	logger *zap.Logger
}

// NewInteractionService creates an InteractionService.
//
// Precondition: host and logger must be non-nil.
func NewInteractionService(host *Host, logger *zap.Logger) *InteractionService {
	return &InteractionService{host: host, logger: logger}
}

// Interact implements InteractionServer.
func (s *InteractionService) Interact(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	npcID, requester, _ := decodeRequest(req)
	return s.result(npcID, s.host.ServerInteract(ctx, npcID, requester))
}

// HandleInteraction implements InteractionServer.
func (s *InteractionService) HandleInteraction(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	npcID, requester, intent := decodeRequest(req)
	return s.result(npcID, s.host.ServerHandleInteraction(ctx, npcID, requester, intent))
}

func (s *InteractionService) result(npcID string, err error) (*emptypb.Empty, error) {
	switch {
	case err == nil:
		return &emptypb.Empty{}, nil
	case errors.Is(err, ErrInstanceNotFound):
		s.logger.Debug("interaction for unknown npc instance", zap.String("npc_id", npcID))
		return nil, status.Errorf(codes.NotFound, "npc %q not found", npcID)
	default:
		return nil, status.FromContextError(err).Err()
	}
}

// decodeRequest extracts the addressing and payload fields. Missing or
// non-string fields decode to empty values, which the router drops.
func decodeRequest(req *structpb.Struct) (string, interaction.Requester, tag.Tag) {
	fields := req.GetFields()
	npcID := fields[FieldNPCID].GetStringValue()
	intent := tag.Tag(fields[FieldIntent].GetStringValue())

	var requester interaction.Requester
	if id := fields[FieldRequesterID].GetStringValue(); id != "" {
		requester = interaction.PlayerRef(id)
	}
	return npcID, requester, intent
}

// InteractionClient calls a remote InteractionService.
type InteractionClient struct {
	cc grpc.ClientConnInterface
}

// NewInteractionClient creates a client over cc.
func NewInteractionClient(cc grpc.ClientConnInterface) *InteractionClient {
	return &InteractionClient{cc: cc}
}

// Interact sends the default Interact intent for requesterID to npcID.
func (c *InteractionClient) Interact(ctx context.Context, npcID, requesterID string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]interface{}{
		FieldNPCID:       npcID,
		FieldRequesterID: requesterID,
	})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, methodInteract, in, new(emptypb.Empty), opts...)
}

// HandleInteraction sends intent for requesterID to npcID.
func (c *InteractionClient) HandleInteraction(ctx context.Context, npcID, requesterID string, intent tag.Tag, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]interface{}{
		FieldNPCID:       npcID,
		FieldRequesterID: requesterID,
		FieldIntent:      intent.String(),
	})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, methodHandleInteraction, in, new(emptypb.Empty), opts...)
}
