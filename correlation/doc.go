/*
Package correlation tracks in-flight requests by correlation id.

The Registry is the single piece of shared mutable state of the proxy. Register,
Resolve, Expire and Cancel serialize on one mutex and whichever of them removes
a pending call first completes it; every later attempt is a no-op. A completed
call is always removed and its timer always stopped, so neither late replies nor
late timers can leak entries or complete a call twice.
*/
package correlation
