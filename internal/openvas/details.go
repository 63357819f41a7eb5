package openvas

import "iter"

// Details is an ordered multimap of host detail names to their values.
// Names keep the order they first appeared in; a nil Details is empty.
type Details struct {
	names  []string
	values map[string][]string
}

func newDetails() *Details {
	return &Details{values: make(map[string][]string)}
}

func (d *Details) add(name, value string) {
	if _, ok := d.values[name]; !ok {
		d.names = append(d.names, name)
	}
	d.values[name] = append(d.values[name], value)
}

// Get returns the values recorded under name.
func (d *Details) Get(name string) []string {
	if d == nil {
		return nil
	}
	return d.values[name]
}

// Has reports whether any value was recorded under name.
func (d *Details) Has(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.values[name]
	return ok
}

func (d *Details) Names() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.names...)
}

func (d *Details) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// All yields name/values pairs in first-seen order.
func (d *Details) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		if d == nil {
			return
		}
		for _, name := range d.names {
			if !yield(name, d.values[name]) {
				return
			}
		}
	}
}
