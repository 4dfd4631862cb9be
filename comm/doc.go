/*
Package comm implements the replication transport between lwwgraph replicas.
Replicas talk gRPC with a JSON codec, the service description is written by
hand. A Receiver exposes the local replica to its peers and to clients, a
Sender periodically exchanges complete graph states with every configured
peer. Because merging states is idempotent and order-insensitive, lost or
repeated rounds need no special handling.
*/
package comm
