/*
Package loadtest contains the load generation engine: the Definition of a load test, the rate paced
Dispatcher that drives the invoker, the Aggregator that folds outcomes into a RunResult and Execute which
composes the two.

Two pacing disciplines are available.

Batched (the default) works in one second windows. Each window fires exactly rate concurrent invocations
and waits for all of them to complete before the next window may start. The next window starts at the
later of the window start + 1s and the moment the barrier clears, and windows are started while the
elapsed time is below the duration. Against a fast target a run therefore issues rate * duration
requests, against a slow one fewer.

Token bucket issues one invocation per token of a bucket refilled at rate per second with a burst of 1.
There is no barrier, a slow target does not delay the next invocation. Once the duration has elapsed the
invocations still in flight are awaited.

In both cases the duration bounds when invocations are started, not when they finish. A run takes up to
duration + request timeout.

	res, err := loadtest.Execute(ctx, &loadtest.Definition{
		Name:            "checkout",
		Request:         http.Request{Method: "GET", URL: "http://localhost:14000/ok"},
		DurationSeconds: 3,
		Rate:            10,
	}, loadtest.OnProgress(func(p loadtest.Progress) {
		fmt.Println(p.Total)
	}))
*/
package loadtest
