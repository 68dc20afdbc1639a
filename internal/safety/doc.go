// Package safety implements a level-based safety supervisor.
//
// A supervisor owns a fixed set of levels and a fixed event alphabet.
// Every level binds
//
//   - a sparse transition table (event -> target level),
//   - one input action per critical input (ignore, or check and emit),
//   - one output action per critical output (drive low or high),
//   - a level action invoked once per tick while the level is resident.
//
// Levels, events and actions are registered on [Properties] and checked
// by [Properties.Verify] before a [Supervisor] is built from them. Levels
// are data, not types: the concrete robot only fills tables.
//
// One tick is split into [Supervisor.Step] (sample inputs, drain the
// event queue FIFO, run the level action) and [Supervisor.ApplyOutputs]
// (force the output actions), so the control graph can run in between.
// Events triggered during a level action are handled on the next tick.
//
// Transitions are executed by a github.com/looplab/fsm machine generated
// from the level tables.
package safety
