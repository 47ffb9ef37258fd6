/*
Package parley is a conversation flow runtime for messaging bots with retrieval-augmented AI replies.

A bot is a directed graph of typed nodes (trigger, message, question, condition, ai, end)
authored in a visual editor and stored as JSON or YAML. Parley walks the graph for every
inbound message, sends replies through a Messenger, suspends at questions and resumes the
conversation when the user answers.

# Concept

Each message runs one "pass" over the flow. A pass starts where the conversation was left
(a pending question, or the trigger for new and finished conversations), executes nodes
until it reaches a question, an end node or a dead end, and persists the conversation state
after every step. Messages of the same conversation are serialized; different conversations
run in parallel.

AI nodes build a prompt from the node's system prompt, the recent conversation history and,
when knowledge sources are attached, the chunks retrieved by similarity search over embedded
documents (see pkg/knowledge).

# Key Features

  - Typed flows: node configs are decoded into typed variants and validated before use.
  - Durable conversations: state lives in pluggable stores (memory, file, Redis, Postgres).
  - Knowledge base: text, URL and file ingestion, chunking, embedding and cosine retrieval.
  - Multiple LLM providers: OpenAI-compatible APIs (OpenAI, Groq) and Gemini.

# Usage

Flows are read from a Loam directory by default, one document per bot:

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/parley"
		"github.com/aretw0/parley/pkg/runner"
	)

	func main() {
		bot, err := parley.New("./flows", parley.WithMessenger(runner.NewConsole(os.Stdout)))
		if err != nil {
			log.Fatal(err)
		}

		res, err := bot.HandleMessage(context.Background(), parley.Inbound{
			BotID:          "pizza",
			ConversationID: "+4915100000000",
			Text:           "Hallo",
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Println(res.Outcome)
	}

For production, use WithStore, WithLocker and WithConversationLog to plug durable adapters,
WithCompleter and WithRetriever to enable AI nodes, and WithMetrics for Prometheus metrics.
*/
package parley
