/*
Package operations declares the closed set of remote operations per destination.

Every destination owns a string type implementing rpc.Operation. A proxy is
parameterized by one of these types, so a call can only name operations that
the bound destination understands.
*/
package operations
