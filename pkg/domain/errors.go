package domain

import "errors"

// ErrConversationNotFound is returned when a conversation ID cannot be found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrFlowNotFound is returned when no flow is registered for a bot.
var ErrFlowNotFound = errors.New("flow not found")

// ErrNodeNotFound is returned when an edge or a suspension points to a node missing from the flow.
var ErrNodeNotFound = errors.New("node not found")

// ErrNoTrigger is returned when a flow has no trigger node to start from.
var ErrNoTrigger = errors.New("flow has no trigger node")

// ErrStepLimitExceeded is returned when a single pass executes more nodes than allowed.
var ErrStepLimitExceeded = errors.New("step limit exceeded")

// ErrInvalidConfig is returned when a node configuration cannot be decoded into its typed variant.
var ErrInvalidConfig = errors.New("invalid node config")

// ErrSourceNotFound is returned when a knowledge source ID cannot be found.
var ErrSourceNotFound = errors.New("knowledge source not found")

// ErrEmptyDocument is returned when extraction yields no usable text.
var ErrEmptyDocument = errors.New("document has no extractable text")

// ErrUnsupportedSource is returned for file types the ingestion pipeline cannot read.
var ErrUnsupportedSource = errors.New("unsupported source type")

// ErrInvalidFlow is matched by every structural validation failure of a flow.
var ErrInvalidFlow = errors.New("invalid flow")
