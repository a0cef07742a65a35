// Package server assembles the wallet core: storage, gateway client,
// wallet session, permission broker, transaction ledger, WebSocket hub,
// and the gin router. All dependencies are constructed here and passed
// down explicitly; nothing in the tree reaches for a global.
package server
