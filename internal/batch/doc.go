// Package batch partitions constraints into batches in which no particle
// appears twice, so every batch can be solved in parallel without write
// conflicts.
//
// Coloring is linear time: every particle carries a 16 bit occupancy mask,
// a constraint's batch is the lowest bit unset in the union of its
// particles' masks, found through a 65,536 entry lookup table. Constraints
// that find every bit taken are greedily packed into one extra batch;
// whatever still conflicts is dropped and reported as overflow.
package batch
