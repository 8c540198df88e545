package optimize

import (
	"sort"
)

// Candidate is one evaluated genome.
type Candidate struct {
	Genome     []int     `json:"genome"`
	Key        string    `json:"key"`
	Objectives []float64 `json:"objectives"`
	Feasible   bool      `json:"feasible"`
}

// Dominates reports whether a is no worse than b in every objective and
// strictly better in at least one. All objectives are minimized.
func Dominates(a, b []float64) bool {
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// ParetoFront returns the feasible non-dominated candidates, duplicates by key
// removed, sorted lexicographically by objectives then key. The output does
// not depend on input order.
func ParetoFront(cands []Candidate) []Candidate {
	seen := make(map[string]bool, len(cands))
	pool := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if !c.Feasible || seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		pool = append(pool, c)
	}

	front := make([]Candidate, 0)
	for i, c := range pool {
		dominated := false
		for j, o := range pool {
			if i != j && Dominates(o.Objectives, c.Objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, c)
		}
	}
	SortCandidates(front)
	return front
}

// SortCandidates orders by objectives (lexicographic) and then by key.
func SortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return less(cs[i], cs[j]) })
}

func less(a, b Candidate) bool {
	for k := range a.Objectives {
		if k >= len(b.Objectives) {
			break
		}
		if a.Objectives[k] != b.Objectives[k] {
			return a.Objectives[k] < b.Objectives[k]
		}
	}
	return a.Key < b.Key
}

// ranks assigns non-dominated sorting ranks (0 = first front). Infeasible
// candidates always rank after every feasible one.
func ranks(cs []Candidate) []int {
	n := len(cs)
	rank := make([]int, n)
	for i := range rank {
		rank[i] = -1
	}
	assigned := 0
	for r := 0; assigned < n; r++ {
		current := make([]int, 0)
		for i := 0; i < n; i++ {
			if rank[i] >= 0 {
				continue
			}
			dominated := false
			for j := 0; j < n; j++ {
				if i == j || rank[j] >= 0 {
					continue
				}
				if dominatesCand(cs[j], cs[i]) {
					dominated = true
					break
				}
			}
			if !dominated {
				current = append(current, i)
			}
		}
		for _, i := range current {
			rank[i] = r
		}
		assigned += len(current)
	}
	return rank
}

func dominatesCand(a, b Candidate) bool {
	if a.Feasible != b.Feasible {
		return a.Feasible
	}
	return Dominates(a.Objectives, b.Objectives)
}
