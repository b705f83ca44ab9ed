// Package intern assigns dense integer ids to names. A Table belongs to a
// single solving session; it is not safe for concurrent use.
package intern

type Table struct {
	ids   map[string]int
	names []string
}

func NewTable() *Table {
	return &Table{ids: make(map[string]int)}
}

// ID returns the id of name, allocating the next free id on first use.
func (t *Table) ID(name string) int {
	if id, found := t.ids[name]; found {
		return id
	}

	id := len(t.names)
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

func (t *Table) Name(id int) string {
	return t.names[id]
}

func (t *Table) Len() int {
	return len(t.names)
}
