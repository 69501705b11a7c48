package doc

import "github.com/yourorg/apibuilder/pkg/types"

// Snapshot copies the subtree rooted at g into its serializable form.
// Captured values are shared, not copied.
func (g *Group) Snapshot() types.GroupNode {
	node := types.GroupNode{
		Docs:       g.Docs(),
		Parameters: g.parameters,
		Queries:    g.queries,
	}
	for _, c := range g.children {
		node.Children = append(node.Children, c.Snapshot())
	}
	for _, a := range g.actions {
		an := types.ActionNode{Docs: a.Docs()}
		for _, ex := range a.examples {
			an.Examples = append(an.Examples, *ex)
		}
		node.Actions = append(node.Actions, an)
	}
	return node
}

// FromSnapshot rebuilds a root group from node.
func FromSnapshot(node types.GroupNode) *Group {
	g := New()
	restore(g, node)
	return g
}

func restore(g *Group, node types.GroupNode) {
	g.docs = node.Docs
	g.parameters = node.Parameters
	g.queries = node.Queries
	for _, cn := range node.Children {
		child := newChild(g)
		restore(child, cn)
		g.children = append(g.children, child)
	}
	for _, an := range node.Actions {
		a := newAction(g)
		a.docs = an.Docs
		if len(an.Examples) > 0 {
			a.examples = a.examples[:0]
			for i := range an.Examples {
				ex := an.Examples[i]
				a.examples = append(a.examples, &ex)
			}
		}
		g.actions = append(g.actions, a)
	}
}

// CountActions returns the number of actions in the subtree rooted at g.
func (g *Group) CountActions() int {
	n := 0
	g.Walk(func(c *Group) { n += len(c.actions) })
	return n
}
