/*
Package knowledge implements the retrieval pipeline behind the AI node.

  - Ingestor accepts text, URLs and files, stores a "processing" source and
    chunks + indexes it in the background.
  - Indexer embeds the chunks of a source in bounded, time-boxed batches.
    A failing chunk is logged and skipped; an unexpected vector size is
    stored but flagged for audit.
  - Retriever embeds a query and runs the similarity search of the
    KnowledgeStore. No sources or no hits yield an empty result, never an error.
*/
package knowledge
