package world

// FindPath returns a 4-way path from start to goal, both ends included, or
// nil when goal cannot be reached within maxNodes expansions. blocked is
// consulted for every cell except start.
func FindPath(size Size, start, goal Cell, blocked func(Cell) bool, maxNodes int) []Cell {
	if !size.Contains(start) || !size.Contains(goal) {
		return nil
	}
	if start == goal {
		return []Cell{start}
	}
	if blocked != nil && blocked(goal) {
		return nil
	}

	index := func(c Cell) int { return c.Y*size.Width + c.X }
	startIdx, goalIdx := index(start), index(goal)

	open := []Cell{start}
	inOpen := map[int]bool{startIdx: true}
	cameFrom := make(map[int]int, 128)
	g := map[int]int{startIdx: 0}
	f := map[int]int{startIdx: manhattan(start, goal)}

	for n := 0; len(open) > 0 && n < maxNodes; n++ {
		best := 0
		for i, c := range open {
			if f[index(c)] < f[index(open[best])] {
				best = i
			}
		}
		cur := open[best]
		curIdx := index(cur)
		open = append(open[:best], open[best+1:]...)
		delete(inOpen, curIdx)

		if curIdx == goalIdx {
			return walkBack(cameFrom, curIdx, startIdx, size.Width)
		}

		for _, d := range [...]Direction{DirRight, DirLeft, DirDown, DirUp} {
			next := cur.Neighbor(d)
			if !size.Contains(next) || (blocked != nil && blocked(next)) {
				continue
			}
			nextIdx := index(next)
			score := g[curIdx] + 1
			if prev, seen := g[nextIdx]; seen && score >= prev {
				continue
			}
			cameFrom[nextIdx] = curIdx
			g[nextIdx] = score
			f[nextIdx] = score + manhattan(next, goal)
			if !inOpen[nextIdx] {
				open = append(open, next)
				inOpen[nextIdx] = true
			}
		}
	}
	return nil
}

func walkBack(cameFrom map[int]int, idx, startIdx, width int) []Cell {
	var path []Cell
	for {
		path = append(path, Cell{X: idx % width, Y: idx / width})
		if idx == startIdx {
			break
		}
		prev, ok := cameFrom[idx]
		if !ok {
			return nil
		}
		idx = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
