// Package ws implements the WebSocket channel between the wallet core
// and the browser shell. The core pushes approval prompts and lifecycle
// events; the shell pushes back the user's approve and reject
// decisions.
package ws
