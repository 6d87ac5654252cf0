// Package engine is the composition root that assembles the interpreter
// backend, the channel middleware and the status session from
// configuration. Frontends (CLI, MCP, websocket) interact with Engine and
// never wire lower-level packages themselves.
//
// Three backends are supported: the in-memory reference interpreter, an
// interpreter child process speaking the line protocol, and a remote
// interpreter reached over websocket.
package engine
