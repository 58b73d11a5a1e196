// Package linkedlist provides a small generic doubly linked list used by the
// staking rank ledger. Unlike container/list it is type safe and exposes the
// node type directly so callers can keep handles for O(1) removal.
package linkedlist

// Node is a single list element.
type Node[T any] struct {
	Value T

	prev, next *Node[T]
	list       *List[T]
}

// Prev returns the preceding node or nil at the front.
func (n *Node[T]) Prev() *Node[T] {
	if n == nil || n.list == nil {
		return nil
	}
	if p := n.prev; p != &n.list.root {
		return p
	}
	return nil
}

// Next returns the following node or nil at the back.
func (n *Node[T]) Next() *Node[T] {
	if n == nil || n.list == nil {
		return nil
	}
	if p := n.next; p != &n.list.root {
		return p
	}
	return nil
}

// List is a doubly linked list with a sentinel root.
type List[T any] struct {
	root Node[T]
	size int
}

// New returns an initialized empty list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.root.prev = &l.root
	l.root.next = &l.root
	l.root.list = l
	return l
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return l.size }

// Front returns the first node or nil when empty.
func (l *List[T]) Front() *Node[T] {
	if l.size == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the last node or nil when empty.
func (l *List[T]) Back() *Node[T] {
	if l.size == 0 {
		return nil
	}
	return l.root.prev
}

// PushFront inserts a value at the front and returns its node.
func (l *List[T]) PushFront(value T) *Node[T] {
	return l.insertAfter(value, &l.root)
}

// PushBack appends a value at the back and returns its node.
func (l *List[T]) PushBack(value T) *Node[T] {
	return l.insertAfter(value, l.root.prev)
}

// InsertBefore inserts a value immediately before mark.
func (l *List[T]) InsertBefore(value T, mark *Node[T]) *Node[T] {
	if mark == nil || mark.list != l {
		return nil
	}
	return l.insertAfter(value, mark.prev)
}

// InsertAfter inserts a value immediately after mark.
func (l *List[T]) InsertAfter(value T, mark *Node[T]) *Node[T] {
	if mark == nil || mark.list != l {
		return nil
	}
	return l.insertAfter(value, mark)
}

// Remove unlinks the node and returns its value.
func (l *List[T]) Remove(node *Node[T]) T {
	var zero T
	if node == nil || node.list != l || node == &l.root {
		return zero
	}
	node.prev.next = node.next
	node.next.prev = node.prev
	node.prev = nil
	node.next = nil
	node.list = nil
	l.size--
	value := node.Value
	node.Value = zero
	return value
}

func (l *List[T]) insertAfter(value T, at *Node[T]) *Node[T] {
	node := &Node[T]{Value: value, list: l}
	node.prev = at
	node.next = at.next
	at.next.prev = node
	at.next = node
	l.size++
	return node
}
