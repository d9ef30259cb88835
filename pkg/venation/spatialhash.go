package venation

import (
	"math"

	"github.com/chazu/canopy/pkg/vecmath"
)

type cellKey struct{ x, y int }

// SpatialHash2D is a uniform grid over the XY plane, bucketing inserted
// ids by cell so a radius query only scans the covering cell rectangle
// instead of every id, giving expected O(k) queries where k is the
// number of ids returned.
type SpatialHash2D struct {
	cellSize  float64
	positions map[int]vecmath.Vec3
	buckets   map[cellKey][]int
}

// NewSpatialHash2D returns a hash with the given cell size.
func NewSpatialHash2D(cellSize float64) *SpatialHash2D {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialHash2D{
		cellSize:  cellSize,
		positions: map[int]vecmath.Vec3{},
		buckets:   map[cellKey][]int{},
	}
}

func (h *SpatialHash2D) cellOf(pos vecmath.Vec3) cellKey {
	return cellKey{int(math.Floor(pos.X / h.cellSize)), int(math.Floor(pos.Y / h.cellSize))}
}

// Insert appends id at pos.
func (h *SpatialHash2D) Insert(id int, pos vecmath.Vec3) {
	h.positions[id] = pos
	key := h.cellOf(pos)
	h.buckets[key] = append(h.buckets[key], id)
}

// Remove deletes id from the hash.
func (h *SpatialHash2D) Remove(id int) {
	pos, ok := h.positions[id]
	if !ok {
		return
	}
	key := h.cellOf(pos)
	bucket := h.buckets[key]
	for i, v := range bucket {
		if v == id {
			h.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	delete(h.positions, id)
}

// QueryRadius returns every id within r of c, scanning the covering cell
// rectangle and filtering by squared distance.
func (h *SpatialHash2D) QueryRadius(c vecmath.Vec3, r float64) []int {
	minCell := h.cellOf(vecmath.Vec3{X: c.X - r, Y: c.Y - r})
	maxCell := h.cellOf(vecmath.Vec3{X: c.X + r, Y: c.Y + r})

	var result []int
	rSq := r * r
	for x := minCell.x; x <= maxCell.x; x++ {
		for y := minCell.y; y <= maxCell.y; y++ {
			for _, id := range h.buckets[cellKey{x, y}] {
				pos := h.positions[id]
				dx, dy := pos.X-c.X, pos.Y-c.Y
				if dx*dx+dy*dy <= rSq {
					result = append(result, id)
				}
			}
		}
	}
	return result
}
