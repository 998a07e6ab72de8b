// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"fmt"
	"sync"
	"time"
)

// Subscriber renders output events.
type Subscriber interface {
	// Handle renders one event. It is called synchronously by Emit.
	Handle(event Event)
	// Name identifies the subscriber for Unsubscribe and logs.
	Name() string
	// ShouldHandle filters events before Handle.
	ShouldHandle(event Event) bool
}

// Stream dispatches events to subscribers in registration order.
//
// Dispatch is synchronous so console lines keep their order.
type Stream struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewStream creates a stream with no subscribers.
func NewStream() *Stream {
	return &Stream{subscribers: make([]Subscriber, 0, 4)}
}

// Subscribe registers sub.
func (s *Stream) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Unsubscribe removes every subscriber with the given name.
func (s *Stream) Unsubscribe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subscribers[:0]
	for _, sub := range s.subscribers {
		if sub.Name() != name {
			kept = append(kept, sub)
		}
	}
	s.subscribers = kept
}

// Emit dispatches event. A zero timestamp is set to now.
func (s *Stream) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscribers {
		if sub.ShouldHandle(event) {
			sub.Handle(event)
		}
	}
}

// Info emits a console line.
func (s *Stream) Info(sessionID, format string, args ...any) {
	s.Emit(Event{Type: EventInfo, SessionID: sessionID, Message: sprintf(format, args...)})
}

// Error emits err.
func (s *Stream) Error(sessionID string, err error) {
	if err == nil {
		return
	}
	s.Emit(Event{Type: EventError, SessionID: sessionID, Message: err.Error(), Data: err})
}

// Warning emits a warning line.
func (s *Stream) Warning(sessionID, format string, args ...any) {
	s.Emit(Event{Type: EventWarning, SessionID: sessionID, Message: sprintf(format, args...)})
}

// Table emits rows under headers.
func (s *Stream) Table(sessionID string, headers []string, rows [][]string) {
	s.Emit(Event{Type: EventTable, SessionID: sessionID, Data: Table{Headers: headers, Rows: rows}})
}

// Diag emits diagnostic output at level.
func (s *Stream) Diag(level Level, message string, metadata map[string]any) {
	s.Emit(Event{Type: EventDiag, Level: level, Message: message, Metadata: metadata})
}

// SubscriberCount returns the number of subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
