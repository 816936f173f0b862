/*
Package log provides structured logging for gridmesh built on zerolog.

Call Init once at process start, then obtain component-scoped child loggers
with WithComponent, or correlate by entity with WithNodeID, WithTaskID,
WithJobID and WithClusterID. Console output is the default; JSON output is
intended for log collectors.
*/
package log
