package pipeline

// Stage names a point in a run's progress.
type Stage string

const (
	StageStart               Stage = "START"
	StageInferred            Stage = "INFERRED"
	StageVerified            Stage = "VERIFIED"
	StageVerificationSkipped Stage = "VERIFICATION_SKIPPED"
	StageLogged              Stage = "LOGGED"
	StageDone                Stage = "DONE"
)
