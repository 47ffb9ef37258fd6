/*
Package observability provides monitoring for the Parley runtime.

Metrics exposes Prometheus collectors for interpreter passes, node visits,
external service calls, embeddings and ingestion. Hooks turns them into
domain.LifecycleHooks so the interpreter stays unaware of Prometheus, and
Combine/LogHooks let several observers share one hook set.
*/
package observability
