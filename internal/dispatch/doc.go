// Package dispatch owns the client-side send cycle.
//
// # State machine
//
// The controller moves Idle -> Sending -> Idle. Sending is entered only when
// all guards pass:
//
//   - no cycle is already in flight (busy flag)
//   - the draft text is non-blank or an attachment is held
//   - a session exists
//
// A send intent that fails a guard is ignored: no turn is appended, no call
// is issued, nothing changes.
//
// # One cycle
//
//  1. Snapshot the draft text and attachment.
//  2. Append the user turn to the transcript (optimistic, never retracted).
//  3. Issue exactly one outbound call. No retries, no cancellation path.
//  4. On success, append the assistant turn from the response; on any
//     failure, append a fixed apology turn labeled "System" with a
//     client-side timestamp.
//  5. Clear the draft and attachment, release the busy flag.
//
// Step 5 runs on both branches. The composer never retains content for a
// retry; the only difference between outcomes is which turn was appended.
// Failures surface only as conversation content, never as errors to the
// caller.
package dispatch
