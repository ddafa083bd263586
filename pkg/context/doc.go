/*
Package context provides utilities wrapping the native go/context package
for catching and handling multiple interrupts.

The main use-case is to attach an interrupt signal handler to the context.
The serve command derives its context with WithInterruptCancellation to stop active runs before
exiting, and the worker process uses WithInterruptCancellation so that a stop request (SIGINT from the
coordinator) ends the run after the current window and still reports a partial result.

	import "github.com/surgehq/surge/pkg/context"

	...

	ctx, cancel := context.WithInterruptCancellation(parent)
	defer cancel()
	res, err := loadtest.Execute(ctx, def, loadtest.OnProgress(onProgress))
*/
package context
