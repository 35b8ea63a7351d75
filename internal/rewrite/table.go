package rewrite

// Table is an ordered, immutable list of compiled rewrite rules. It is built
// once at config-load time; matching walks the rules in declaration order and
// the first hit wins.
type Table struct {
	rules []*Rule
}

// NewTable creates a table over the given rules, preserving their order.
func NewTable(rules []*Rule) *Table {
	return &Table{rules: rules}
}

// Match tests the path against every rule of the given phase in table order
// and returns the first matching target.
func (t *Table) Match(phase Phase, path string) (*Target, bool) {
	for _, rule := range t.rules {
		if rule.phase != phase {
			continue
		}
		if target, ok := rule.Match(path); ok {
			return target, true
		}
	}
	return nil, false
}

// Rules returns the table's rules in declaration order.
func (t *Table) Rules() []*Rule {
	return t.rules
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	return len(t.rules)
}
