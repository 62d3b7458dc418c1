// Package toolexecutor registers and executes the tools exposed to the model.
//
// Invariants:
// - Tool names are unique.
// - Parameters are schema-validated before any handler runs.
// - A tool without Handler requires confirmation. Execute never runs it;
//   ExecuteConfirmed asks the approval manager and then runs the execution
//   registered with RegisterExecution.
// - Failures come back as a ToolResult carrying a typed *ToolError.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
//			return params["text"], nil
//		},
//	})
//	result := exec.Execute(ctx, "echo", map[string]interface{}{"text": "hi"}, nil)
//	fmt.Println(toolexecutor.Render(result))
package toolexecutor
