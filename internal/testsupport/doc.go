// Package testsupport holds helpers shared by package tests: a config
// builder rooted in a temp directory, queue seeding helpers and stub worker
// binaries that speak the disk queue protocol.
package testsupport
