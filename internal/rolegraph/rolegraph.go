// Package rolegraph analyzes the role-inheritance relation set ("g" rules)
// as a directed graph: child subject -> parent role. It feeds the role cache
// with transitive closures and answers the role-topology query.
package rolegraph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/authplane/authplane/internal/db/models"
)

// Layer is one level of the inheritance topology: roles in layer N inherit
// only from roles in layers < N.
type Layer struct {
	Level    int      `json:"level"`
	Subjects []string `json:"subjects"`
}

// Topology is the answer to the role-topology query for one domain.
type Topology struct {
	Domain   string  `json:"domain,omitempty"`
	Layers   []Layer `json:"layers"`
	HasCycle bool    `json:"hasCycle"`
}

// buildGraph constructs a directed graph over the relation rows, returning
// the graph plus both direction lookups between subjects and node ids.
// Rows whose domain differs from the given one (and is non-empty) are
// skipped; a row with an empty domain applies everywhere.
func buildGraph(rules []models.Rule, domain string) (*simple.DirectedGraph, map[string]int64, map[int64]string) {
	g := simple.NewDirectedGraph()
	idOf := make(map[string]int64)
	nameOf := make(map[int64]string)
	next := int64(0)

	node := func(subject string) int64 {
		if id, ok := idOf[subject]; ok {
			return id
		}
		id := next
		next++
		idOf[subject] = id
		nameOf[id] = subject
		g.AddNode(simple.Node(id))
		return id
	}

	for _, rule := range rules {
		if rule.Ptype != models.PtypeRelation {
			continue
		}
		if rule.V2 != "" && domain != "" && rule.V2 != domain {
			continue
		}
		child, parent := rule.V0, rule.V1
		if child == "" || parent == "" || child == parent {
			continue
		}
		from, to := node(child), node(parent)
		if !g.HasEdgeFromTo(from, to) {
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return g, idOf, nameOf
}

// Closure computes the transitive set of roles a subject inherits within a
// domain, the subject itself excluded. Result is sorted for stable output.
func Closure(rules []models.Rule, subject, domain string) []string {
	g, idOf, nameOf := buildGraph(rules, domain)

	roles := []string{}
	start, ok := idOf[subject]
	if !ok {
		return roles
	}

	visited := map[int64]bool{start: true}
	queue := []int64{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for it := g.From(id); it.Next(); {
			parent := it.Node().ID()
			if visited[parent] {
				continue
			}
			visited[parent] = true
			roles = append(roles, nameOf[parent])
			queue = append(queue, parent)
		}
	}

	sort.Strings(roles)
	return roles
}

// BuildTopology layers the inheritance graph for one domain: repeatedly peel
// subjects with no remaining parents (Kahn's algorithm). When a cycle
// remains, the stuck subjects are reported as a final layer and HasCycle is
// set; mutations are never blocked by a cycle, it only degrades analysis.
func BuildTopology(rules []models.Rule, domain string) Topology {
	g, idOf, nameOf := buildGraph(rules, domain)

	_, sortErr := topo.Sort(g)
	result := Topology{Domain: domain, Layers: []Layer{}, HasCycle: sortErr != nil}

	// Out-degree toward unpeeled parents; a subject is ready when all its
	// parents have been placed in earlier layers.
	remaining := make(map[int64]int, len(idOf))
	for _, id := range idOf {
		degree := 0
		for it := g.From(id); it.Next(); {
			degree++
		}
		remaining[id] = degree
	}

	placed := make(map[int64]bool)
	level := 0
	for len(placed) < len(remaining) {
		var ready []int64
		for id, degree := range remaining {
			if !placed[id] && degree == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Cycle: everything left is stuck; emit as one last layer.
			var stuck []string
			for id := range remaining {
				if !placed[id] {
					placed[id] = true
					stuck = append(stuck, nameOf[id])
				}
			}
			sort.Strings(stuck)
			result.Layers = append(result.Layers, Layer{Level: level, Subjects: stuck})
			break
		}

		subjects := make([]string, 0, len(ready))
		for _, id := range ready {
			placed[id] = true
			subjects = append(subjects, nameOf[id])
		}
		sort.Strings(subjects)
		result.Layers = append(result.Layers, Layer{Level: level, Subjects: subjects})

		for _, id := range ready {
			for it := g.To(id); it.Next(); {
				remaining[it.Node().ID()]--
			}
		}
		level++
	}

	return result
}

// HasCycle reports whether the domain's inheritance graph contains a cycle.
func HasCycle(rules []models.Rule, domain string) bool {
	g, _, _ := buildGraph(rules, domain)
	_, err := topo.Sort(g)
	return err != nil
}
