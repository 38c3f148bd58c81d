// Package agent runs the tool-calling dialogue between a language model and
// the tools catalog.
//
// # Architecture
//
//   - Model: one request/response round trip with a provider (OpenAI or Anthropic)
//   - Transcript: the ordered conversation (system, user, assistant, tool call, tool result)
//   - Loop: drives the conversation for one user message under a tool-call budget
//
// A Loop owns a working SiteTree. Tools that need it (the page setters) get
// it injected, and any tree a tool returns (sitePropagator) replaces it.
//
// # Budget
//
// Run executes at most budget tool calls in total. Calls a model emits after
// the budget is spent are dropped without a result, and the next round that
// executes nothing ends the run with a fixed message. The number of model
// round trips is bounded by max(1, 3*budget+2) as well, so a model that keeps
// answering with unknown tools cannot loop forever.
//
// Design decision: Providers are thin adapters. The Transcript is provider
// neutral, and each adapter converts it to its own wire messages on every
// request. A run can therefore switch providers between messages without
// rewriting history.
package agent
