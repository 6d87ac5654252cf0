// Package mcpserver exposes a toolbox over the Model Context Protocol so MCP
// clients can read and write simulation status.
package mcpserver
