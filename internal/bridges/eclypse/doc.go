// Package eclypse bridges a Distech Eclypse controller's BACnet objects onto
// MQTT.
//
// Client talks to the controller's REST API: it discovers objects, polls
// their properties in a single read-property-multiple request per cycle,
// reconciles the answers into a bacnet.Registry, and flushes queued writes
// with write-property-multiple. Bridge drives the Client on a fixed poll
// interval and publishes what changed.
//
// # Authentication
//
// Requests carry HTTP Basic credentials until the controller hands out a
// session cookie on a successful response; the cookie is sent from then on.
// A 401 while using the cookie drops it and the request is retried once with
// Basic credentials.
//
// # Failure handling
//
// Transport errors and 5xx/429 responses are retried with exponential
// backoff up to RetryPolicy.MaxAttempts. Any other non-200 response fails
// the cycle with ErrUnexpectedStatus and leaves the cache untouched; the
// next scheduled poll is the retry.
//
// # MQTT topics
//
//	eclypse/state/{device}/{object}/{property}    retained, changes only
//	eclypse/command/{device}/{object}/{property}  {"value":..,"priority":n,"id":".."}
//	eclypse/ack/{device}/{object}/{property}      write outcome
//	eclypse/health/{device}                       retained, every HealthInterval
package eclypse
