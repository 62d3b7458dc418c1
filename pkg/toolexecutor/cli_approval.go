package toolexecutor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// CLIApprovalHandler handles approval requests via CLI prompts
type CLIApprovalHandler struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewCLIApprovalHandler creates a new CLI approval handler. Passing the
// same *bufio.Reader the caller reads from keeps buffered input shared.
func NewCLIApprovalHandler(reader io.Reader, writer io.Writer) *CLIApprovalHandler {
	return &CLIApprovalHandler{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// RequestApproval prompts the user for approval via CLI
func (c *CLIApprovalHandler) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	c.displayApprovalRequest(req)

	responseChan := make(chan ApprovalResponse, 1)
	errorChan := make(chan error, 1)

	go func() {
		response, err := c.readUserInput(req)
		if err != nil {
			errorChan <- err
		} else {
			responseChan <- response
		}
	}()

	select {
	case response := <-responseChan:
		return response, nil

	case err := <-errorChan:
		return ApprovalResponse{}, err

	case <-ctx.Done():
		c.displayTimeout()
		return ApprovalResponse{
			Approved: false,
			Reason:   "timeout",
		}, ctx.Err()
	}
}

// displayApprovalRequest displays the approval request to the user
func (c *CLIApprovalHandler) displayApprovalRequest(req ApprovalRequest) {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.writer, "║              TOOL CONFIRMATION REQUIRED                        ║")
	fmt.Fprintln(c.writer, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.writer, "")
	fmt.Fprintf(c.writer, "  Tool:       %s\n", req.ToolName)

	if len(req.Params) > 0 {
		args, err := json.Marshal(req.Params)
		if err == nil {
			fmt.Fprintf(c.writer, "  Arguments:  %s\n", args)
		}
	}

	if req.AgentID != "" {
		fmt.Fprintf(c.writer, "  Agent:      %s\n", req.AgentID)
	}

	if req.Timeout > 0 {
		fmt.Fprintf(c.writer, "  Timeout:    %v\n", req.Timeout)
	}

	fmt.Fprintln(c.writer, "")
	fmt.Fprint(c.writer, "  Run this tool? [y/N]: ")
}

// readUserInput reads and parses one line of user input
func (c *CLIApprovalHandler) readUserInput(req ApprovalRequest) (ApprovalResponse, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return ApprovalResponse{
				Approved: false,
				Reason:   "no input provided",
			}, nil
		}
		return ApprovalResponse{}, fmt.Errorf("failed to read input: %w", err)
	}

	input := strings.TrimSpace(strings.ToLower(line))

	var response ApprovalResponse
	switch input {
	case "y", "yes":
		response = ApprovalResponse{
			Approved: true,
			Reason:   "approved by user",
		}
		fmt.Fprintln(c.writer, "\n  Tool APPROVED")

		log.Info().Str("tool", req.ToolName).Msg("Tool approved via CLI")

	case "n", "no", "":
		response = ApprovalResponse{
			Approved: false,
			Reason:   "denied by user",
		}
		fmt.Fprintln(c.writer, "\n  Tool DENIED")

		log.Info().Str("tool", req.ToolName).Msg("Tool denied via CLI")

	default:
		response = ApprovalResponse{
			Approved: false,
			Reason:   fmt.Sprintf("invalid input: %s", input),
		}
		fmt.Fprintf(c.writer, "\n  Invalid input: %s (defaulting to DENY)\n", input)

		log.Warn().
			Str("tool", req.ToolName).
			Str("input", input).
			Msg("Invalid input for approval")
	}

	return response, nil
}

// displayTimeout displays timeout message
func (c *CLIApprovalHandler) displayTimeout() {
	fmt.Fprintln(c.writer, "")
	fmt.Fprintln(c.writer, "  Confirmation request TIMED OUT")
	fmt.Fprintln(c.writer, "")
}
