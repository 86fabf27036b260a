// Package dynamo provides the core contracts shared by plants, controllers
// and the analysis tools.
//
//   - [System]: time-stepped block with indexed inputs and outputs
//   - [Tunable]: a System configured by a flat parameter vector
//   - [Integration]: integration scheme chosen when a system is built
//   - [Partition]: contiguous sharding used by the optimizer worker pool
//
// # Cloning
//
// Clone copies configuration and the current state, so a clone taken
// mid-simulation continues from the same operating point:
//
//	loop, _ := control.NewLoop(pid, motor, nil)
//	probe := loop.Clone()
//	probe.Update(dt) // loop is untouched
//
// [CloneTunable] performs the clone and the type check in one call and
// reports [ErrIncompatibleSystem] when the copy is not tunable.
//
// # Thread Safety
//
// Systems are NOT thread-safe. Concurrent evaluation works on independent
// clones, one per goroutine.
package dynamo
