// Package block is a small fixed-period block-diagram runtime.
//
// A graph is built once at startup from blocks whose ports are wired
// together:
//
//   - [Output] owns a [Signal] and may feed any number of inputs
//   - [Input] borrows exactly one upstream [Source]
//   - [InputSub] re-exposes an external input as a source for the
//     blocks inside a composite
//
// Numeric primitives ([Sum], [Gain], [D], [I]) are generic over
// [dynamo.Value] so the same block serves scalar and planar signals.
// [Blockio] wraps a pure function mapping N inputs to M outputs.
//
// A [TimeDomain] runs its root blocks in registration order once per
// tick while it is started. There is no runtime topological sort:
// composites call their children in a schedule fixed at wiring time.
//
//	td := block.NewTimeDomain("control", 0.01)
//	td.Add(src, ctrl)
//	if err := td.Validate(); err != nil {
//		return err
//	}
//	td.Start()
//	td.Tick(now)
package block
