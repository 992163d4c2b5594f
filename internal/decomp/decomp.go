// Package decomp derives the MPI processor grid from the model grid.
//
// WRF decomposes the horizontal domain into nproc_x by nproc_y patches; too
// few grid points per patch waste communication, so the decomposition keeps a
// minimum patch width per processor in each direction.
package decomp

// DefaultMinPerProc is the minimum grid points per processor in one
// direction. 25 keeps halo exchange overhead acceptable for typical
// idealized domains.
const DefaultMinPerProc = 25

// Options controls Decompose.
type Options struct {
	// MinPerProc is the minimum grid points per processor per direction.
	// Zero selects DefaultMinPerProc.
	MinPerProc int

	// EvenSplit requires the point count to divide evenly across the
	// processors of each direction.
	EvenSplit bool

	// MaxNX and MaxNY cap the grid; zero means uncapped.
	MaxNX int
	MaxNY int
}

// FindNproc returns the processor count for one direction with n grid
// points. Without EvenSplit it is simply n/minPerProc; with EvenSplit it is
// the largest count not exceeding that which divides n evenly.
func FindNproc(n, minPerProc int, evenSplit bool) int {
	if minPerProc <= 0 {
		minPerProc = DefaultMinPerProc
	}
	if n <= minPerProc {
		return 1
	}
	if evenSplit {
		for nproc := n / minPerProc; nproc > 1; nproc-- {
			if n%nproc == 0 {
				return nproc
			}
		}
		return 1
	}
	return n / minPerProc
}

// Decompose derives (nx, ny) from the namelist grid dimensions e_we and
// e_sn. The staggered dimension counts one point more than the mass grid, so
// the decomposition works on e_we-1 and e_sn-1. A fully serial result is
// collapsed to the (-1, -1) sentinel that tells WRF to choose its own
// decomposition.
func Decompose(eWE, eSN int, opts Options) (nx, ny int) {
	min := opts.MinPerProc
	if min <= 0 {
		min = DefaultMinPerProc
	}
	nx = FindNproc(eWE-1, min, opts.EvenSplit)
	ny = FindNproc(eSN-1, min, opts.EvenSplit)
	if opts.MaxNX > 0 && nx > opts.MaxNX {
		nx = opts.MaxNX
	}
	if opts.MaxNY > 0 && ny > opts.MaxNY {
		ny = opts.MaxNY
	}
	if nx == 1 && ny == 1 {
		return -1, -1
	}
	return nx, ny
}

// Slots is the MPI slot count a grid occupies; the serial sentinel counts as
// one slot.
func Slots(nx, ny int) int {
	if nx < 1 || ny < 1 {
		return 1
	}
	return nx * ny
}
