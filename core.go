package grayv

// Owner is a node in the GPU object ownership tree. Teardown destroys
// children before their parent, later-attached children first, so the
// destruction order is explicit and can be inspected with Order.
type Owner struct {
	name     string
	destroy  func() error
	children []*Owner
	done     bool
}

func NewOwner(name string, destroy func() error) *Owner {
	return &Owner{name: name, destroy: destroy}
}

// Own attaches child and returns it.
func (o *Owner) Own(child *Owner) *Owner {
	o.children = append(o.children, child)
	return child
}

func (o *Owner) Name() string { return o.name }

func (o *Owner) walk(fn func(*Owner)) {
	for i := len(o.children) - 1; i >= 0; i-- {
		o.children[i].walk(fn)
	}
	fn(o)
}

// Order lists the names of nodes with a destroy function in teardown order.
func (o *Owner) Order() []string {
	var names []string
	o.walk(func(n *Owner) {
		if n.destroy != nil && !n.done {
			names = append(names, n.name)
		}
	})
	return names
}

// Teardown destroys the whole tree and returns the first error. Every node
// is attempted even after a failure.
func (o *Owner) Teardown() error {
	var first error
	o.walk(func(n *Owner) {
		if n.destroy == nil || n.done {
			return
		}
		if err := n.destroy(); err != nil && first == nil {
			first = err
		}
		n.done = true
	})
	return first
}
