// Package pool provides object pooling to reduce GC pressure
package pool

import (
	"sync"
)

// StringSlicePool pools []string
var StringSlicePool = sync.Pool{
	New: func() interface{} {
		return make([]string, 0, 16)
	},
}

// GetStringSlice gets a string slice from pool
func GetStringSlice() []string {
	s := StringSlicePool.Get().([]string)
	return s[:0]
}

// PutStringSlice returns a string slice to pool
func PutStringSlice(s []string) {
	StringSlicePool.Put(s)
}
