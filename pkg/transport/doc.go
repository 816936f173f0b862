/*
Package transport abstracts how the coordinator talks to node agents.

The interface is intentionally minimal: a non-blocking Send of an
executeTask or cancelTask command, and an out-of-band Results stream for
execution outcomes. The exact wire protocol is a collaborator concern;
this package ships an HTTP/JSON implementation matched by the node agent,
and a scripted in-memory Fake used throughout the tests.
*/
package transport
