/*
Package crypto provides the basis for secure communication between lwwgraph
replicas. It builds mutual-TLS configurations from a small internal PKI and
can generate that PKI: one root certificate signing one key pair per replica.
*/
package crypto
