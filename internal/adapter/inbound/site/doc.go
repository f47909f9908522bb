// Package site provides the request handlers wiregate mounts on its routes.
//
// # Handlers
//
//	StaticHandler - files under a directory, with ETag revalidation
//	EchoHandler   - GET echoes path and query, POST echoes the body
//	TextHandler   - a fixed body
//	HealthHandler - JSON status of the server and its worker pool
//
// Every handler answers with an explicit Content-Length when the size is
// known up front, so HTTP/1.0 clients keep their connection.
package site
