package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// DataStore is a small key/value store used for session data, user profiles
// and trigger side effects. Safe for concurrent use.
type DataStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	touched  bool
	readOnly bool
}

// NewDataStore returns an empty writable store.
func NewDataStore() *DataStore {
	return &DataStore{values: make(map[string][]byte)}
}

// Put stores raw bytes under key.
func (d *DataStore) Put(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readOnly {
		return fmt.Errorf("put %q: %w", key, ErrReadOnlyStore)
	}
	if d.values == nil {
		d.values = make(map[string][]byte)
	}
	d.values[key] = append([]byte(nil), value...)
	d.touched = true
	return nil
}

// PutString stores a string value.
func (d *DataStore) PutString(key, value string) error {
	return d.Put(key, []byte(value))
}

// PutObject stores v encoded as JSON.
func (d *DataStore) PutObject(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return d.Put(key, b)
}

// Get returns a copy of the value under key.
func (d *DataStore) Get(key string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// GetString returns the value under key as a string.
func (d *DataStore) GetString(key string) (string, bool) {
	v, ok := d.Get(key)
	return string(v), ok
}

// GetObject decodes the JSON value under key into out.
func (d *DataStore) GetObject(key string, out any) (bool, error) {
	v, ok := d.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Contains reports whether key is present.
func (d *DataStore) Contains(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.values[key]
	return ok
}

// Delete removes key.
func (d *DataStore) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readOnly {
		return fmt.Errorf("delete %q: %w", key, ErrReadOnlyStore)
	}
	if _, ok := d.values[key]; ok {
		delete(d.values, key)
		d.touched = true
	}
	return nil
}

// Keys returns the keys in sorted order.
func (d *DataStore) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (d *DataStore) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}

// SizeInBytes is the sum of key and value lengths.
func (d *DataStore) SizeInBytes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for k, v := range d.values {
		n += len(k) + len(v)
	}
	return n
}

// Touched reports whether the store was written since the flag was reset.
func (d *DataStore) Touched() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.touched
}

// SetTouched overrides the touched flag.
func (d *DataStore) SetTouched(touched bool) {
	d.mu.Lock()
	d.touched = touched
	d.mu.Unlock()
}

// ReadOnly reports whether writes are rejected.
func (d *DataStore) ReadOnly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readOnly
}

// SetReadOnly toggles write protection.
func (d *DataStore) SetReadOnly(readOnly bool) {
	d.mu.Lock()
	d.readOnly = readOnly
	d.mu.Unlock()
}

// MergeMissing copies entries from src whose keys are absent here.
// It returns the merged keys.
func (d *DataStore) MergeMissing(src *DataStore) []string {
	if src == nil || src == d {
		return nil
	}
	src.mu.RLock()
	defer src.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.values == nil {
		d.values = make(map[string][]byte)
	}
	var merged []string
	for k, v := range src.values {
		if _, exists := d.values[k]; exists {
			continue
		}
		d.values[k] = append([]byte(nil), v...)
		merged = append(merged, k)
	}
	if len(merged) > 0 {
		d.touched = true
		sort.Strings(merged)
	}
	return merged
}

// Clone returns a writable, untouched copy.
func (d *DataStore) Clone() *DataStore {
	out := NewDataStore()
	if d == nil {
		return out
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for k, v := range d.values {
		out.values[k] = append([]byte(nil), v...)
	}
	return out
}

// MarshalJSON encodes the entries; values are base64 encoded.
func (d *DataStore) MarshalJSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.values)
}

// UnmarshalJSON decodes entries written by MarshalJSON.
func (d *DataStore) UnmarshalJSON(b []byte) error {
	values := make(map[string][]byte)
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	d.mu.Lock()
	d.values = values
	d.mu.Unlock()
	return nil
}
