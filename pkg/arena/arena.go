// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package arena provides process-wide identity tables with monotonically
// issued integer ids. Once a value is inserted its id is never reused or
// reassigned, and the value itself is never replaced.
package arena

import (
	"sort"
	"strconv"
	"sync"
)

// Entry pairs an issued id with its value.
type Entry[T any] struct {
	ID    int
	Value T
}

// Arena is a concurrency-safe identity table.
type Arena[T any] struct {
	mu       sync.RWMutex
	next     int
	values   map[int]T
	reserved map[int]struct{}
}

// New creates an empty arena. The first issued id is 0.
func New[T any]() *Arena[T] {
	return &Arena[T]{values: make(map[int]T), reserved: make(map[int]struct{})}
}

// Insert stores v and returns the id issued for it.
func (a *Arena[T]) Insert(v T) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.values[id] = v
	return id
}

// Reserve issues an id without storing a value. The id becomes live once
// Fill stores its value.
func (a *Arena[T]) Reserve() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.reserved[id] = struct{}{}
	return id
}

// Fill stores v under a reserved id. It fails unless id came from Reserve
// and has not been filled or released.
func (a *Arena[T]) Fill(id int, v T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.reserved[id]; !ok {
		return false
	}
	delete(a.reserved, id)
	a.values[id] = v
	return true
}

// Release abandons a reserved id without ever filling it.
func (a *Arena[T]) Release(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, id)
}

// InsertAll stores every value under a single lock so the issued ids are
// contiguous.
func (a *Arena[T]) InsertAll(vs []T) []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]int, 0, len(vs))
	for _, v := range vs {
		id := a.next
		a.next++
		a.values[id] = v
		ids = append(ids, id)
	}
	return ids
}

// Get returns the value for id.
func (a *Arena[T]) Get(id int) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[id]
	return v, ok
}

// GetString resolves a stringified id ("3") as issued by ID.
func (a *Arena[T]) GetString(id string) (T, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		var zero T
		return zero, false
	}
	return a.Get(n)
}

// Update applies fn to the stored value under the write lock. fn receives the
// current value and returns the enriched one. It is the owner's job to keep
// identity fields untouched.
func (a *Arena[T]) Update(id int, fn func(T) T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[id]
	if !ok {
		return false
	}
	a.values[id] = fn(v)
	return true
}

// Remove drops id from the table. The id is not reissued.
func (a *Arena[T]) Remove(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.values[id]; !ok {
		return false
	}
	delete(a.values, id)
	return true
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// IDs returns the live ids in ascending order.
func (a *Arena[T]) IDs() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sortedIDs()
}

// Snapshot returns all entries in ascending id order.
func (a *Arena[T]) Snapshot() []Entry[T] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.sortedIDs()
	out := make([]Entry[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, Entry[T]{ID: id, Value: a.values[id]})
	}
	return out
}

// Range calls fn for each entry in ascending id order until fn returns false.
// fn runs on a snapshot, so it may call back into the arena.
func (a *Arena[T]) Range(fn func(id int, v T) bool) {
	for _, e := range a.Snapshot() {
		if !fn(e.ID, e.Value) {
			return
		}
	}
}

// Find returns the first entry (ascending id) for which match returns true.
func (a *Arena[T]) Find(match func(T) bool) (int, T, bool) {
	for _, e := range a.Snapshot() {
		if match(e.Value) {
			return e.ID, e.Value, true
		}
	}
	var zero T
	return -1, zero, false
}

func (a *Arena[T]) sortedIDs() []int {
	ids := make([]int, 0, len(a.values))
	for id := range a.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ID formats an issued id the way it is exposed to plugins.
func ID(n int) string {
	return strconv.Itoa(n)
}
