/*
Package ports defines the driven ports (interfaces) of the Parley runtime.

These interfaces decouple the interpreter and the knowledge pipeline from the
concrete storage backends, messaging transports and model providers.

# Key Interfaces

  - StateStore: Persists ConversationState keyed by conversation ID.
  - DistributedLocker: Serializes passes for one conversation across replicas.
  - FlowRepository: Loads the flow graph of a bot.
  - ConversationLog: Keeps the conversation record and the message log.
  - Messenger: Delivers text and quick replies to an end user.
  - Completer / Embedder: Language model completion and text embedding services.
  - KnowledgeStore: Knowledge sources, chunks and the similarity search primitive.
*/
package ports
