package toolexecutor

import (
	"encoding/json"
	"fmt"
)

// Render turns a result into the text handed back to the model. Strings
// pass through, other output is encoded as JSON and failures become their
// message.
func Render(result ToolResult) string {
	if !result.Success {
		if result.Error == nil {
			return "Tool execution failed"
		}
		return result.Error.Error()
	}

	switch out := result.Output.(type) {
	case nil:
		return ""
	case string:
		return out
	case fmt.Stringer:
		return out.String()
	}

	data, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Sprintf("%v", result.Output)
	}
	return string(data)
}
