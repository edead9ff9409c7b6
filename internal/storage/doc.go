// Package storage abstracts the durable object store that holds uploaded
// demo assets, with an S3-compatible backend for production and a filesystem
// backend for development and tests.
package storage
