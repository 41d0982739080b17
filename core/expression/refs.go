package expression

// ReferencedCatalogs lists the catalog identifiers a compiled
// expression names through qualified references or frame targets.
// Unqualified column references resolve against the evaluation scope
// and are not reported here.
func (c *Compiled) ReferencedCatalogs() []string {
	seen := make(map[string]bool)
	var out []string
	walkRefs(c.root, func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	})
	return out
}

func walkRefs(n node, visit func(string)) {
	switch nd := n.(type) {
	case colNode:
		if len(nd.keys) == 2 {
			visit(nd.keys[0])
		}
	case frameNode:
		visit(nd.catalog)
	case listNode:
		for _, e := range nd.elems {
			walkRefs(e, visit)
		}
	case binaryNode:
		walkRefs(nd.left, visit)
		walkRefs(nd.right, visit)
	case notNode:
		walkRefs(nd.expr, visit)
	case negNode:
		walkRefs(nd.expr, visit)
	case castNode:
		walkRefs(nd.expr, visit)
	case strNode:
		walkRefs(nd.expr, visit)
	case nullNode:
		walkRefs(nd.expr, visit)
	case sumNode:
		walkRefs(nd.expr, visit)
	case betweenNode:
		walkRefs(nd.expr, visit)
		walkRefs(nd.low, visit)
		walkRefs(nd.high, visit)
	case isinNode:
		walkRefs(nd.expr, visit)
		walkRefs(nd.set, visit)
	case datetimeNode:
		walkRefs(nd.expr, visit)
	case dateFieldNode:
		walkRefs(nd.expr, visit)
	case applyNode:
		// A single-key frame target at package scope names a catalog
		if col, ok := nd.target.(colNode); ok && len(col.keys) == 1 {
			visit(col.keys[0])
		}
		walkRefs(nd.target, visit)
		walkRefs(nd.body, visit)
	}
}
