/*
The errors package provides the error taxonomy shared by the load engine, the coordinator,
the store and the status API.

	ValidationError      malformed definition, rejected before any run. Lists every bad field
	NotFoundError        unknown definition id
	AlreadyRunningError  start or delete conflicting with an active worker
	NotRunningError      stop on a definition without an active worker
	InvocationError      per-request transport failure. Only ever stored inside an Outcome
	WorkerFault          the isolated execution context died before producing a result

Callers match on kinds with the standard library helpers

	if errors.Is(err, errors2.ErrNotFound) {
		...
	}

	var verr *errors2.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields() { ... }
	}

PrintError walks nested multierrors and logs each one with its depth.
*/
package errors
