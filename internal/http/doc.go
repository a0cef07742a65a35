// Package http contains the REST handlers the browser shell and the
// dapp bridge call. Handlers orchestrate across the wallet session,
// the permission broker, and the transaction ledger; domain rules stay
// in those packages.
package http
