package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/eytandecker/mavbridge/internal/bridge"
	"github.com/eytandecker/mavbridge/pkg/types"
)

// BridgeReader is the subset of bridge.Bridge used by the MCP server.
type BridgeReader interface {
	Status() bridge.Status
	Actuators() (types.ActuatorCommand, error)
	MotorOutputs() []float64
}

// Server wraps the MCP SDK server and exposes bridge diagnostics as tools.
type Server struct {
	sdk    *mcpsdk.Server
	bridge BridgeReader
	now    func() time.Time
}

// NewServer creates a Server and registers the get_bridge_status and
// get_actuator_outputs tools.
func NewServer(br BridgeReader) *Server {
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "mavbridge",
			Version: "1.0.0",
		}, nil),
		bridge: br,
		now:    time.Now,
	}

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_bridge_status",
		Description: "Returns the MAVLink HIL bridge connection state, lockstep flags and traffic counters.",
	}, s.handleGetBridgeStatus)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_actuator_outputs",
		Description: "Returns the latest actuator controls received from the autopilot and the mixed motor outputs.",
	}, s.handleGetActuatorOutputs)
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

type getStatusInput struct{}

// BridgeStatusResponse is the JSON payload of get_bridge_status.
type BridgeStatusResponse struct {
	bridge.Status
	Timestamp string `json:"timestamp"`
}

// getOutputsInput holds arguments for the get_actuator_outputs tool.
type getOutputsInput struct {
	IncludeRaw bool `json:"include_raw,omitempty"`
}

// ActuatorOutputsResponse is the JSON payload of get_actuator_outputs.
type ActuatorOutputsResponse struct {
	Armed     bool      `json:"armed"`
	Outputs   []float64 `json:"outputs"`
	Controls  []float64 `json:"controls,omitempty"`
	Mode      *uint8    `json:"mode,omitempty"`
	TimeUsec  *uint64   `json:"time_usec,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// BridgeUnavailableResponse is returned when a tool cannot answer.
type BridgeUnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Server) handleGetBridgeStatus(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input getStatusInput,
) (*mcpsdk.CallToolResult, any, error) {
	return s.jsonResult(BridgeStatusResponse{
		Status:    s.bridge.Status(),
		Timestamp: s.timestamp(),
	})
}

func (s *Server) handleGetActuatorOutputs(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input getOutputsInput,
) (*mcpsdk.CallToolResult, any, error) {
	cmd, err := s.bridge.Actuators()
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	resp := ActuatorOutputsResponse{
		Armed:     cmd.Armed,
		Outputs:   s.bridge.MotorOutputs(),
		Timestamp: s.timestamp(),
	}
	if input.IncludeRaw {
		mode, ts := cmd.Mode, cmd.TimeUsec
		resp.Controls = cmd.Controls
		resp.Mode = &mode
		resp.TimeUsec = &ts
	}
	return s.jsonResult(resp)
}

func (s *Server) jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) errorResult(err error) *mcpsdk.CallToolResult {
	resp := BridgeUnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: s.timestamp(),
	}

	switch {
	case errors.Is(err, bridge.ErrNoActuatorData):
		resp.Code = "NO_ACTUATOR_DATA"
		resp.Recoverable = true
		resp.Suggestion = "Wait for the autopilot to send HIL_ACTUATOR_CONTROLS; it starts after the heartbeat handshake."
	case errors.Is(err, bridge.ErrConnection):
		resp.Code = "AUTOPILOT_NOT_CONNECTED"
		resp.Recoverable = true
		resp.Suggestion = "Ensure the SITL autopilot is running and the endpoint is reachable."
	default:
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}
