package segment

import (
	"container/heap"

	img "cell-counter/internal/image"
)

// floodItem is a pixel waiting in the flooding queue. age breaks ties between
// equal levels so basins grow in the order pixels were reached.
type floodItem struct {
	idx   int
	level float64
	age   int
}

type floodQueue []floodItem

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].level != q[j].level {
		return q[i].level < q[j].level
	}
	return q[i].age < q[j].age
}
func (q floodQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x interface{}) { *q = append(*q, x.(floodItem)) }
func (q *floodQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Watershed floods the surface -dist from the seeds, 4-connected, never
// leaving mask. Each labelled pixel takes the id of the basin that reached it
// first; foreground pixels no basin can reach stay 0.
func Watershed(dist *img.Frame, mask *img.Mask, seeds []Seed) *img.LabelMap {
	w, h := dist.Width, dist.Height
	labels := img.NewLabelMap(w, h)

	q := make(floodQueue, 0, len(seeds))
	age := 0
	for _, s := range seeds {
		i := s.Pos.Y*w + s.Pos.X
		if !mask.Pix[i] {
			continue
		}
		labels.Labels[i] = s.ID
		q = append(q, floodItem{idx: i, level: -dist.Pix[i], age: age})
		age++
	}
	heap.Init(&q)

	for q.Len() > 0 {
		cur := heap.Pop(&q).(floodItem)
		cx, cy := cur.idx%w, cur.idx/w
		id := labels.Labels[cur.idx]

		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if !mask.Pix[ni] || labels.Labels[ni] != 0 {
				continue
			}
			labels.Labels[ni] = id
			heap.Push(&q, floodItem{idx: ni, level: -dist.Pix[ni], age: age})
			age++
		}
	}
	return labels
}
