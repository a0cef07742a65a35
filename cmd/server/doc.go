// Command server runs the Lumen wallet core: the loopback HTTP and
// WebSocket service the browser shell embeds for wallet sessions, dapp
// permissions, and transaction tracking.
package main
