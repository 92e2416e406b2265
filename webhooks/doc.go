// Package webhooks guards inbound bank notifications with a delivery ledger.
//
// Each delivery is claimed by its transaction id before the handler runs:
// pending/retry_ready -> processing -> processed|dead.
// A failed delivery is released as retry_ready so a redelivery runs again;
// a processed one is acknowledged without invoking the handler.
package webhooks
