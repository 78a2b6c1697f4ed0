// Package log provides leveled logging for netstate.
//
// The package keeps a small global API over a logrus logger so that every
// component logs the same way without passing a logger around.
//
// # Log Levels
//
//   - DEBUG: Detailed diagnostic information (only shown in verbose mode)
//   - INFO: General informational messages
//   - WARN: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures
//
// # Example Usage
//
//	log.Infof("Applying %d operations", n)
//	log.Warnf("NetworkManager is not reachable: %v", err)
//
// Enabling verbose mode for debug output:
//
//	log.SetVerbose(true)
//	log.Debugf("netlink: %+v", link)
//
// # Per-call logs
//
// Engine calls return an ordered list of human-readable messages. A Recorder
// captures those messages while still forwarding them to the process logger,
// tagged with the call's transaction id:
//
//	rec := log.NewRecorder(txn)
//	rec.Infof("no changes needed")
//	entries := rec.Entries() // ["no changes needed"]
package log
