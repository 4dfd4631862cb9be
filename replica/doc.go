/*
Package replica wraps an LWW graph into the service run by one lwwgraph node.
The service assigns timestamps to operations that arrive without one, keeps
its hybrid clock ahead of every timestamp it has seen, and persists the graph
state after each mutation and merge. Logging and metrics are added as
middleware around the Service interface.
*/
package replica
