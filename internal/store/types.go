package store

// Run is one recorded pipeline execution.
//
// Context and Result hold canonical JSON so a stored run hashes to the same
// bytes it was signed with.
type Run struct {
	ID                 string
	Seq                int64
	Mode               string
	Prompt             string
	Context            string
	HiddenSize         int
	StateDigest        string
	VerificationStatus string
	PayloadHash        string
	Signature          string
	Result             string
	Tasks              []Task
}

// Task is one entry of a run's ordered task list.
type Task struct {
	Position    int
	Name        string
	PayloadHash string
}

// Snapshot is the engine state captured after the run with the same seq.
type Snapshot struct {
	Seq        int64
	HiddenSize int
	Vector     []float64
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	// Status keeps only runs with this verification status.
	Status string
	// AfterSeq keeps only runs with seq greater than this.
	AfterSeq int64
	// Limit caps the number of runs returned. Zero means no limit.
	Limit int
}
