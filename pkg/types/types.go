package types

// AccessType is the unlock factor chosen by the user
type AccessType string

const (
	AccessTypePIN AccessType = "PIN"
	AccessTypeBIO AccessType = "BIO"
)

// IsValid reports whether a is a known access type
func (a AccessType) IsValid() bool {
	return a == AccessTypePIN || a == AccessTypeBIO
}

// Factor names one storage slot of the secure store
type Factor string

const (
	FactorLegacyPin       Factor = "legacyPin"
	FactorLegacyBiometric Factor = "legacyBiometric"
	FactorNewPin          Factor = "newPin"
	FactorNewBiometric    Factor = "newBiometric"
)

// AllFactors returns every factor known to the secure store
func AllFactors() []Factor {
	return []Factor{FactorLegacyPin, FactorLegacyBiometric, FactorNewPin, FactorNewBiometric}
}

// MigrationStatus is the transition the keychain migrator has to run.
// It is always recomputed from storage and never persisted.
type MigrationStatus string

const (
	MigrationNotNeeded       MigrationStatus = "noMigrationNeeded"
	MigrationRunPin          MigrationStatus = "runPinMigration"
	MigrationRunBiometric    MigrationStatus = "runBiometricMigration"
	MigrationCompletePartial MigrationStatus = "completePartialMigration"
)

// KeychainState describes which secret copies are present in storage
type KeychainState string

const (
	KeychainLegacyOnly       KeychainState = "LegacyOnly"
	KeychainNewPinOnly       KeychainState = "NewPinOnly"
	KeychainNewBiometricOnly KeychainState = "NewBiometricOnly"
	KeychainNewBoth          KeychainState = "NewBoth"
	KeychainInconsistent     KeychainState = "Inconsistent"
)
