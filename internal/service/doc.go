// Package service owns the state of one webterm session: the current site
// tree, its root URL, and the single scan task that may be running.
//
// A scan task is one agent.Loop driven by a fixed task prompt. The service
// rejects a second task while one runs (ErrBusy) and adopts the loop's tree
// as it changes, so Rows reflects progress while the model works.
//
// Design decision: The tree state and the busy flag are guarded by separate
// mutexes. Checking or claiming the busy flag never waits for a reader of
// the tree, and the running task can publish tree updates without touching
// the busy flag.
package service
