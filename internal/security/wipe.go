package security

import (
	"runtime"
	"unsafe"
)

// WipeConfig contains configuration for secure wiping.
type WipeConfig struct {
	// MultiPass enables multiple wipe passes (DoD 5220.22-M style)
	MultiPass bool
	// NumPasses is the number of wipe passes when MultiPass is true
	NumPasses int
}

// DefaultWipeConfig returns the default wipe configuration.
func DefaultWipeConfig() WipeConfig {
	return WipeConfig{
		MultiPass: false,
		NumPasses: 3,
	}
}

// Wipe zeroes a byte slice containing sensitive material.
//
// Go's garbage collector does not guarantee secure deallocation, so this
// must be called before sensitive data leaves scope. Writes go through an
// unsafe pointer so the compiler cannot elide them, and runtime.KeepAlive
// acts as a memory barrier.
func Wipe(data []byte) {
	WipeWithConfig(data, WipeConfig{})
}

// WipeWithConfig securely wipes a byte slice with configurable options.
func WipeWithConfig(data []byte, config WipeConfig) {
	if len(data) == 0 {
		return
	}

	if config.MultiPass && config.NumPasses > 1 {
		multiPassWipe(data, config.NumPasses)
	} else {
		singlePassWipe(data)
	}

	runtime.KeepAlive(data)
}

func singlePassWipe(data []byte) {
	for i := 0; i < len(data); i++ {
		*(*byte)(unsafe.Add(unsafe.Pointer(&data[0]), i)) = 0
	}
}

func multiPassWipe(data []byte, passes int) {
	patterns := []byte{0x00, 0xFF, 0x55, 0xAA, 0x00}

	for pass := 0; pass < passes; pass++ {
		pattern := patterns[pass%len(patterns)]
		for i := 0; i < len(data); i++ {
			*(*byte)(unsafe.Add(unsafe.Pointer(&data[0]), i)) = pattern
		}
		runtime.KeepAlive(data)
	}
}

// ZeroizeOnPanic sets up a deferred function to wipe sensitive data on panic.
// Usage: defer ZeroizeOnPanic(key)()
func ZeroizeOnPanic(data []byte) func() {
	return func() {
		if r := recover(); r != nil {
			Wipe(data)
			panic(r)
		}
	}
}
