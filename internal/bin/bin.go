// Package bin contains utilities for dealing with binary representations.
package bin

import "unsafe"

func Bytes[T ~int32 | ~uint32](v T) [4]byte {
	return *(*[4]byte)(unsafe.Pointer(&v))
}

func Bytes64[T ~int64 | ~uint64](v T) [8]byte {
	return *(*[8]byte)(unsafe.Pointer(&v))
}

func Value[T ~int32 | ~uint32](data [4]byte) T {
	return *(*T)(unsafe.Pointer(&data))
}

func Value64[T ~int64 | ~uint64](data [8]byte) T {
	return *(*T)(unsafe.Pointer(&data))
}
