// Package geometry holds the small geometric vocabulary shared by the
// collider, grid and contact packages: axis aligned bounds, affine
// transforms, barycentric simplex helpers, closest point queries and the
// iterative polar decomposition used by shape matching.
//
// All types use float32 mgl32 vectors. Positions are carried as Vec4 in
// particle storage; helpers here accept Vec3 and callers drop the w
// component with Vec3().
package geometry
