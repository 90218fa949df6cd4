//go:build !noaccel

package writer

const acceleratedAvailable = true
