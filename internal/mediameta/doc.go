// Package mediameta derives technical metadata from raw audio bytes. Parsing
// is pure: the same input always yields the same result, and no I/O happens.
package mediameta
