// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/netconfig"
	"github.com/meshlayer/overlay/internal/overlaynet"
)

// controllerMethod is the single RPC the remote controller exposes
// above the netconf request envelope: a metadata struct in, a raw
// netconfig dictionary out.
const controllerMethod = "/overlay.netconf.Controller/RequestConfig"

// GRPCControllerClient implements overlaynet.Controller by dialing a
// remote netconf controller. The request/response bodies use the
// well-known protobuf Struct and BytesValue wire types rather than a
// bespoke generated service: only the envelope (requester, networkId,
// metadata) -> raw config bytes shape is ours to define, the
// controller's own RPC surface belongs to the controller.
type GRPCControllerClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewGRPCControllerClient wraps an already-dialed conn; transport
// credentials are chosen by whoever dialed it, so this adapter does not
// hardcode TLS policy.
func NewGRPCControllerClient(conn *grpc.ClientConn) *GRPCControllerClient {
	return &GRPCControllerClient{conn: conn, timeout: 5 * time.Second}
}

func (c *GRPCControllerClient) NetworkConfigRequest(requester addressing.Address, networkID addressing.NetworkID, metadata map[string]string) (overlaynet.ControllerResult, *netconfig.NetworkConfig) {
	fields := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		fields[k] = v
	}
	fields["requester"] = requester.String()
	fields["network_id"] = networkID.String()

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return overlaynet.ControllerOther, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, controllerMethod, req, resp); err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return overlaynet.ControllerNotFound, nil
		case codes.PermissionDenied:
			return overlaynet.ControllerAccessDenied, nil
		default:
			return overlaynet.ControllerOther, nil
		}
	}

	cfg, err := netconfig.Decode(resp.GetValue())
	if err != nil {
		return overlaynet.ControllerOther, nil
	}
	return overlaynet.ControllerOK, cfg
}
