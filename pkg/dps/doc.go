// Package dps models raw device data points.
//
// A data point (DP) is a numbered attribute exposed by a device, for example
// "20" for power or "22" for brightness. Devices report DPs incrementally:
// each Update carries only the DPs that changed. A Snapshot accumulates those
// updates into the last known value of every DP seen so far.
//
// # Merge Semantics
//
// Snapshot.Merge is last-write-wins per key and order preserving. Keys absent
// from an update are never removed, so a partial update can not erase values
// reported earlier:
//
//	s := dps.NewSnapshot()
//	s.Merge(dps.Update{"20": true, "22": 500})
//	s.Merge(dps.Update{"22": 700})
//	// s: {"20": true, "22": 700}
package dps
