// Package remote declares the request/response contract the sync layer uses
// to talk to the storefront API, and normalizes every transport failure into
// one uniform error description (message plus optional code and field errors).
//
// The sync layer never depends on a concrete transport; HTTPClient exists so
// the CLI has something to dial.
package remote
