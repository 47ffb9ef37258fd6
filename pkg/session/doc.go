/*
Package session serializes access to conversation state.

Passes for different conversations run in parallel; passes for the same
conversation queue behind each other. The Manager combines a ref-counted local
mutex per conversation with an optional DistributedLocker for deployments with
several replicas sharing one store.
*/
package session
