// Package flex provides the core primitives shared by the particle solver.
//
// The package defines the vocabulary every other solver package speaks:
//
//   - [ConstraintType]: closed set of constraint families, in solve order
//   - [SolverParameters] and [ConstraintParameters]: tunables for a solver
//   - [CollisionMaterial]: friction/stickiness pairs and their combine modes
//   - [Handle] and [Arena]: generation-checked indices for registered resources
//   - [ParallelFor]: the data-parallel loop every phase of a step runs on
//
// # Example
//
//	params := flex.DefaultSolverParameters()
//	params.Gravity = mgl32.Vec3{0, -9.81, 0}
//	if err := params.Validate(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// Values in this package are plain data. [Arena] is NOT safe for concurrent
// mutation; the collider world serialises registration between solver steps.
package flex
