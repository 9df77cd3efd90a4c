/*
Package domain contains the core types of the parley dialog engine.

It defines the hypotheses produced by language understanding, the handler
identities and conversation graphs held by the registry, the conversation
stack persisted between turns, and the results of handler executions and
whole turns. This package is kept pure and free of I/O, following
Hexagonal Architecture principles.

# Key Entities

  - Hypothesis / RankedHypothesis: a classified candidate and its dialog priority.
  - ConversationGraph: a handler's nodes, start edges and cross-domain edges.
  - ConversationState / ConversationStack: per-domain frames of a multi-turn conversation.
  - MultiTurnBehavior: whether, and how strongly, a handler keeps the conversation.
  - TurnRequest / TurnResult: the input and output of one orchestration turn.
*/
package domain
