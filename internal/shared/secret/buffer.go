// Package secret provides an owned byte buffer for key material that
// zeroes its backing storage when cleared. Access goes through Bytes so
// the plaintext cannot be captured by references that outlive a lock.
package secret

import "sync"

// Buffer holds sensitive bytes with explicit lifetime control.
// The zero value is an empty buffer.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

// NewBuffer copies b into a fresh buffer. The caller keeps ownership of
// b and should clear it after the call.
func NewBuffer(b []byte) *Buffer {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Buffer{data: cp}
}

// FromString copies s into a fresh buffer.
func FromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Bytes returns a copy of the contents, or nil when empty. Callers that
// hand the copy to crypto primitives should wipe it afterwards.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return nil
	}
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return cp
}

// String returns the contents as a string. Unlike Bytes the result
// cannot be wiped, so use it only for values that leave the process
// anyway (addresses, exports explicitly requested by the user).
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Len reports the current length.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// IsEmpty reports whether the buffer holds no bytes.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// Clear overwrites the backing storage with zeros and releases it.
// Safe to call multiple times.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = nil
}

// Wipe zeroes an arbitrary byte slice in place. Helper for transient
// copies handed to crypto primitives.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
