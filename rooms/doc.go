// Package rooms holds the room inventory: the model, its storage contract
// and the HTTP API mounted under /api/rooms. Reads are public, writes need an
// authenticated principal.
package rooms
