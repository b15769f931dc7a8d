// Package constraints holds the XPBD constraint families. Each family keeps
// its constraints as parallel arrays, colours them into batches with
// internal/batch, and accumulates position corrections into the particle
// delta buffers that Apply averages and commits.
//
// Families are dispatched through a closed switch on flex.ConstraintType
// in Set.Step rather than through an interface.
package constraints
