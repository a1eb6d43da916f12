package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// CLIAdapter serialises the payload as JSON to a subprocess's stdin and
// parses its stdout as JSON; a non-zero exit is a delivery failure.
type CLIAdapter struct {
	Command []string
}

// NewCLIAdapter constructs a CLIAdapter invoking command.
func NewCLIAdapter(command []string) *CLIAdapter {
	return &CLIAdapter{Command: command}
}

// Send implements Adapter.
func (a *CLIAdapter) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if len(a.Command) == 0 {
		return nil, fmt.Errorf("cli adapter has no command configured")
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Command[0], a.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cli adapter command failed: %w (stderr: %s)", err, stderr.String())
	}

	out := stdout.Bytes()
	if len(out) == 0 {
		return map[string]any{}, nil
	}
	var response map[string]any
	if err := json.Unmarshal(out, &response); err != nil {
		return nil, fmt.Errorf("parsing cli adapter response: %w", err)
	}
	return response, nil
}
