//go:build noaccel

package writer

const acceleratedAvailable = false
