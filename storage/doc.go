/*
Package storage persists the state of an lwwgraph replica between restarts.
Only the four ledgers of the graph are stored, the adjacency index is rebuilt
from them on load. Three adapters are available: memory (nothing survives a
restart), file (one JSON snapshot rewritten in place) and badger (BadgerDB).
*/
package storage
