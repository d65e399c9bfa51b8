//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHashCost is the bcrypt work factor used for stored passwords
const PasswordHashCost = bcrypt.DefaultCost

func passwordHashCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return PasswordHashCost
}
