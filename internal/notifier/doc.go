// Package notifier delivers chat notifications for the poll loop.
//
// Delivery is synchronous: Deliver returns once the transport has accepted
// (or rejected) the message, so callers that deliver records one by one keep
// their order in the chat.
//
// # Policies
//
// A token bucket bounds the send rate. Identical texts to the same chat can
// be suppressed for a configurable window. Failures are never retried here;
// they are logged and returned as *DeliveryError.
//
// # History
//
// The service keeps a small in-memory history of delivered notifications.
package notifier
