package delta

import (
	"errors"
	"fmt"
)

// ErrCorruptSubmatrix marks tile geometry that does not fit the declared
// matrix bounds.
var ErrCorruptSubmatrix = errors.New("delta: corrupt submatrix geometry")

// tileGeom is the precomputed address arithmetic for one submatrix to
// sequential-matrix conversion. All sizes are in elements, all
// coordinate limits 1-based inclusive.
type tileGeom struct {
	dims      int
	matSize   []int
	matX1     []int
	matXn     []int
	smxSize   []int
	smxX1     []int
	smxXn     []int
	edge      []int
	smxBlocks []int
	matJump   []int
	smxJump   []int
	blockJump []int
}

func newTileGeom(matSize, matX1, matXn, smxSize, smxX1, smxXn, edge []int) (*tileGeom, error) {
	dims := len(matSize)
	if dims == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrCorruptSubmatrix)
	}
	g := &tileGeom{
		dims:      dims,
		matSize:   matSize,
		matX1:     matX1,
		matXn:     matXn,
		smxSize:   smxSize,
		smxX1:     smxX1,
		smxXn:     smxXn,
		edge:      edge,
		smxBlocks: make([]int, dims),
		matJump:   make([]int, dims),
		smxJump:   make([]int, dims),
		blockJump: make([]int, dims),
	}
	for i := 0; i < dims; i++ {
		if smxSize[i] < 1 || matSize[i] < 1 || edge[i] < 1 {
			return nil, fmt.Errorf("%w: dimension %d has empty extent", ErrCorruptSubmatrix, i)
		}
		if matX1[i] < 1 || matXn[i] > matSize[i] || matX1[i] > matXn[i] {
			return nil, fmt.Errorf("%w: matrix range [%d,%d] outside 1..%d",
				ErrCorruptSubmatrix, matX1[i], matXn[i], matSize[i])
		}
		if smxX1[i] < 1 || smxXn[i] > smxSize[i] || smxX1[i] > smxXn[i] {
			return nil, fmt.Errorf("%w: tile range [%d,%d] outside 1..%d",
				ErrCorruptSubmatrix, smxX1[i], smxXn[i], smxSize[i])
		}
		if smxSize[i]%edge[i] != 0 {
			return nil, fmt.Errorf("%w: extent %d not a multiple of tile edge %d",
				ErrCorruptSubmatrix, smxSize[i], edge[i])
		}
		if smxXn[i]-smxX1[i] != matXn[i]-matX1[i] {
			return nil, fmt.Errorf("%w: tile range and matrix range differ in dimension %d",
				ErrCorruptSubmatrix, i)
		}
		g.smxBlocks[i] = smxSize[i] / edge[i]
	}

	blockSize := 1
	for i := 0; i < dims; i++ {
		blockSize *= edge[i]
	}
	for i := dims - 1; i >= 0; i-- {
		g.matJump[i] = 1
		g.smxJump[i] = 1
		g.blockJump[i] = blockSize
		for j := i - 1; j >= 0; j-- {
			g.matJump[i] *= matSize[j]
			g.smxJump[i] *= edge[j]
			g.blockJump[i] *= g.smxBlocks[j]
		}
	}
	return g, nil
}

func (g *tileGeom) matLoc(coords []int) int {
	loc := 0
	for i := 0; i < g.dims; i++ {
		loc += (coords[i] - 1) * g.matJump[i]
	}
	return loc
}

func (g *tileGeom) smxLoc(coords []int) int {
	loc := 0
	for i := 0; i < g.dims; i++ {
		div := (coords[i] - 1) / g.edge[i]
		mod := (coords[i] - 1) % g.edge[i]
		loc += div*g.blockJump[i] + mod*g.smxJump[i]
	}
	return loc
}

// SmxToMatrix rewrites tiled submatrix data into sequential row-major
// order. The tile layout stores complete edge-sized tiles; the valid
// region selected by smxX1/smxXn may end inside the last tile of an
// axis (a partial edge tile).
func SmxToMatrix(src, dst []float32, matSize, matX1, matXn, smxSize, smxX1, smxXn, edge []int) error {
	g, err := newTileGeom(matSize, matX1, matXn, smxSize, smxX1, smxXn, edge)
	if err != nil {
		return err
	}
	srcLoc := make([]int, g.dims)
	dstLoc := make([]int, g.dims)
	g.copyDim(src, dst, g.dims, srcLoc, dstLoc)
	return nil
}

func (g *tileGeom) copyDim(src, dst []float32, dim int, srcLoc, dstLoc []int) {
	d := dim - 1
	for coord := g.smxX1[d]; coord <= g.smxXn[d]; coord++ {
		srcLoc[d] = coord
		dstLoc[d] = g.matX1[d] + coord - g.smxX1[d]
		if d == 0 {
			si := g.smxLoc(srcLoc)
			di := g.matLoc(dstLoc)
			if si < len(src) && di < len(dst) {
				dst[di] = src[si]
			}
		} else {
			g.copyDim(src, dst, d, srcLoc, dstLoc)
		}
	}
}
