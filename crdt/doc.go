/*
Package crdt implements the state-based Last-Writer-Wins element graph
(LWW graph) upon that lwwgraph replicas are built.

Every vertex and every edge of the undirected graph is tracked by two
timestamp maps: the latest add and the latest remove observed for it. An
element is present iff it was added and not removed afterwards; an add and
a remove carrying the same timestamp resolve in favour of the add. Edges
additionally require both of their endpoints to be present.

Replicas converge by exchanging their four maps as a State and joining them
with a per-key maximum. The join is idempotent and insensitive to order
and grouping.
The adjacency index used for neighbor and path queries is derived data: it
is maintained incrementally by local mutations and rebuilt from the joined
maps after every merge, it is never transported.

A Graph synchronizes access by itself. Each operation, merge included,
runs under one lock scoped to the whole replica state, so concurrent
readers never observe a ledger that is out of step with the adjacency
index.
*/
package crdt
