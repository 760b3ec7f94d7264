package graph

func (g *Graph) UnresolvedReasonCounts() map[UnresolvedReason]int {
	counts := make(map[UnresolvedReason]int)
	if g == nil {
		return counts
	}
	for _, u := range g.Unresolved {
		reason := u.Reason
		if reason == "" {
			reason = ReasonNotFound
		}
		counts[reason]++
	}
	return counts
}

func (g *Graph) KindCounts() map[ModuleKind]int {
	counts := make(map[ModuleKind]int)
	if g == nil {
		return counts
	}
	for _, n := range g.Nodes {
		counts[n.Module.Kind]++
	}
	return counts
}
