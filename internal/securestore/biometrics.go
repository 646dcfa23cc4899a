package securestore

import (
	"context"
	"errors"
)

// ErrBiometricRejected is returned by a Biometrics prompt that was denied
var ErrBiometricRejected = errors.New("biometric authentication rejected")

// Biometrics asks the user to confirm presence before the biometric factor
// is opened.
type Biometrics interface {
	Authenticate(ctx context.Context, prompt string) error
}

// BiometricsFunc adapts a function to the Biometrics interface
type BiometricsFunc func(ctx context.Context, prompt string) error

// Authenticate calls f
func (f BiometricsFunc) Authenticate(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

// HostPresence approves every prompt. Hosts without a biometric sensor rely
// on the Sealer's access policy instead.
var HostPresence Biometrics = BiometricsFunc(func(ctx context.Context, prompt string) error {
	return ctx.Err()
})
