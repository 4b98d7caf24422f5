// Package devkit provides test doubles and conformance checks shared by the
// provider adapters and store backends.
package devkit
