/*
Package domain contains the core domain models of the Parley conversation runtime.

It defines the immutable flow graph a bot is built from, the typed configuration
of every node kind, the durable per-conversation state and the knowledge base
entities used for retrieval. This package is kept pure and free of I/O so that
routing rules can be unit tested without any adapter.

# Key Entities

  - Flow: A bot definition (nodes and edges) with the routing helpers used by the runtime.
  - NodeConfig: A sum type over TriggerConfig, MessageConfig, QuestionConfig, ConditionConfig, AIConfig and EndConfig.
  - ConversationState: The durable snapshot of one conversation, including an explicit Suspension.
  - KnowledgeSource / DocumentChunk: Ingested documents and their embedded segments.
*/
package domain
