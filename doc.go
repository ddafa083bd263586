/*
Package surge provides a rate-paced HTTP load testing service and the libraries it is built from.

There are no exports in the root package.

Packages:
	- pkg/http - the target invoker. Performs one templated request and reports its Outcome
	- pkg/loadtest - definitions, the dispatcher that paces invocations and the aggregator that folds them into a RunResult
	- internal/worker - hosts a run in an isolated process or goroutine and speaks the job/message protocol
	- internal/coordinator - lifecycle of runs: start, stop, status and persistence of results
	- internal/store - memory and sqlite stores for definitions and results
	- internal/api - the fasthttp status api

CLI tools part of `cmd/` include:
	- surge - the service and its client commands
	- testServer - a target server with fixed behaviour endpoints for testing and benchmarking surge

*/
package surge
