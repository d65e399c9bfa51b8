// Package repository holds the bun backed stores that live outside the auth
// package and a Manager that wires them next to the credential store.
package repository
