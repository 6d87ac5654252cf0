// Package tools exposes the status operations as callable tools.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/nestbridge/pkg/tools/toolbox]: the Tool type and the ToolBox registry that lists and calls tools
//   - [github.com/germanamz/nestbridge/pkg/tools/mcpserver]: serves a ToolBox over MCP (Model Context Protocol)
//   - [github.com/germanamz/nestbridge/pkg/tools/mcpclient]: calls the tools of an MCP server and returns them as a ToolBox
//
// toolbox is the foundation layer. mcpserver and mcpclient both depend on it
// and are thin wrappers around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). The status tools themselves live
// in [github.com/germanamz/nestbridge/pkg/statustools].
package tools
