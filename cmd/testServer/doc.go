/*
Package testServer provides a fasthttp target server that's configured to respond
at very high RPS (capable of supporting up to 100k RPS).

This server is used when testing and benchmarking surge to check that the achieved rate
matches the configured rate and that failures are classified as expected. Every endpoint has
a fixed behaviour:

	/ok             200
	/fail           500
	/slow/{ms}      200 after sleeping ms milliseconds
	/hang           never answers until the client gives up
	/status/{code}  responds with the given status code

The server is used for testing, and should not be used in a production environment.

Usage

	go run ./cmd/testServer -p 14000-14010
	surge run --url http://127.0.0.1:14000/slow/50 --rate 500 --duration 10s
*/
package main
