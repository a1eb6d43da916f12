package adapter

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
)

// SimulateFlag is the self-exec flag WhatsAppAdapter shells out to when
// no real command is configured, and the flag cmd/notifier and
// cmd/worker check for on startup to run RunSimulation instead of the
// normal CLI.
const SimulateFlag = "--simulate-whatsapp"

// WhatsAppAdapter delivers through a CLIAdapter, defaulting to a
// simulation command (this binary re-invoked with SimulateFlag) when
// none is configured, so the system has a working WhatsApp channel out
// of the box without a real gateway integration.
type WhatsAppAdapter struct {
	cli *CLIAdapter
}

// NewWhatsAppAdapter constructs a WhatsAppAdapter. If command is empty,
// it defaults to self-exec simulation.
func NewWhatsAppAdapter(command []string) (*WhatsAppAdapter, error) {
	if len(command) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		command = []string{exe, SimulateFlag}
	}
	return &WhatsAppAdapter{cli: NewCLIAdapter(command)}, nil
}

// Send implements Adapter, filling in status/message_id when the
// underlying command leaves them unset.
func (a *WhatsAppAdapter) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	response, err := a.cli.Send(ctx, payload)
	if err != nil {
		return nil, err
	}
	if response == nil {
		response = map[string]any{}
	}
	if _, ok := response["status"]; !ok {
		response["status"] = "simulated"
	}
	if _, ok := response["message_id"]; !ok {
		response["message_id"] = "cli-" + uuid.NewString()
	}
	return response, nil
}

// RunSimulation implements the self-exec simulation subcommand: it
// reads a JSON payload from r, stamps in a simulated status and
// message id when absent, and writes it back to w. Invoked by
// cmd/notifier and cmd/worker when started with SimulateFlag.
func RunSimulation(r io.Reader, w io.Writer) error {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		if err == io.EOF {
			payload = map[string]any{}
		} else {
			return err
		}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["status"]; !ok {
		payload["status"] = "simulated"
	}
	if _, ok := payload["message_id"]; !ok {
		payload["message_id"] = "cli-" + uuid.NewString()
	}
	return json.NewEncoder(w).Encode(payload)
}
