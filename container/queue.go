package container

import (
	"container/list"
)

type Queue[T any] struct {
	list *list.List
}

func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.list = list.New()

	return q
}

func (q *Queue[T]) Enqueue(value T) {
	q.list.PushBack(value)
}

// Dequeue removes the oldest element. ok is false on an empty queue.
func (q *Queue[T]) Dequeue() (value T, ok bool) {
	if q.IsEmpty() {
		return value, false
	}
	elem := q.list.Front()
	q.list.Remove(elem)
	return elem.Value.(T), true
}

func (q *Queue[T]) Peek() (value T, ok bool) {
	if q.IsEmpty() {
		return value, false
	}
	return q.list.Front().Value.(T), true
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue[T]) Len() int {
	return q.list.Len()
}

// DequeueWhile removes elements from the front as long as remove reports true
// and returns how many were removed.
func (q *Queue[T]) DequeueWhile(remove func(T) bool) int {
	removed := 0
	for ele := q.list.Front(); ele != nil; ele = q.list.Front() {
		if !remove(ele.Value.(T)) {
			break
		}
		q.list.Remove(ele)
		removed++
	}
	return removed
}

func (q *Queue[T]) ForEach(visit func(T)) {
	for ele := q.list.Front(); ele != nil; ele = ele.Next() {
		visit(ele.Value.(T))
	}
}
