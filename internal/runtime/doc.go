// Package runtime is the conversation flow interpreter.
//
// Engine.Run handles one inbound message: it resumes the question a
// conversation is suspended on, or starts at the trigger, and then executes
// node after node until a question suspends, an end node completes or a node
// has no outgoing edge. Every step is persisted. Delivery and language model
// failures are logged and never escape a pass; structural problems such as a
// missing node or a runaway cycle halt it with a HaltError.
package runtime
