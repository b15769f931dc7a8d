// Package solver advances a particle system one step at a time.
//
// A [Solver] owns its particle arrays and constraint set and reads a
// collider world. Each call to [Solver.Solve] runs the stages below in
// order and reports every transition to registered observers:
//
//   - Predicting: start-of-step snapshot, triangle normals, frame update
//   - ContactGenerating: particle grid and collider broad phase
//   - Batching: contacts and fluid pairs are coloured into batches
//   - Solving: per substep, integrate and project every constraint type
//   - VelocityUpdating: velocities from positions, damping, NaN guard
//   - Interpolating: render copies
//
// # Example
//
//	s, err := solver.New(flex.DefaultSolverParameters(), world, solver.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	r, _ := s.AddParticles(2)
//	...
//	err = s.Solve(1.0/60, 4)
//
// # Thread Safety
//
// A Solver is not safe for concurrent use. Independent solvers may step
// concurrently through [Ensemble] as long as they do not share particle
// data; a shared collider world must not be mutated while they run.
package solver
