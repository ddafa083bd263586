/*
Package http provides the target invoker: a thin wrapper around the fasthttp client that performs a
single request against an arbitrary target and reports the Outcome.

The invoker never returns an error. Every failure mode resolves to an Outcome value so that the
dispatcher only needs to count:

 - a response with any status is a completed invocation. Succeeded is StatusCode < 400
 - a transport failure (dns, refused connection, reset, tls, timeout) has StatusCode 0 and Err set to an
   *errors.InvocationError carrying the ErrorKind
 - a panic inside the client is recovered and reported with ErrorKind "panic"

Every invocation is bounded by Config.Timeout so a hanging target cannot hold a batch open for longer than
the timeout. Redirects are not followed, a 3xx already counts as a success.

Requests are described by Request and compiled once per run into a CompiledRequest. URL, header values
and body may contain placeholders ({{seq}}, {{uuid}}, {{ksuid}}, {{unix}}, {{timestamp}} and
{{regex:PATTERN}}) rendered per invocation with fasttemplate. Rendering goes through pooled byte buffers
to keep the hot loop light.
*/
package http
