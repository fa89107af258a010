package syncer

// Pull progress phases, in order of occurrence.
const (
	PhaseFetch    = "fetch"    // downloading the metadata snapshot
	PhaseApply    = "apply"    // applying metadata to the local store
	PhaseDownload = "download" // downloading photo binaries, one event each
	PhaseDone     = "done"     // terminal event, always emitted
)

// Progress is reported after each pull step as (phase, current, total,
// message). For PhaseDownload, Current counts attempted photos and Total is
// the number of remote photos.
type Progress struct {
	Phase   string
	Current int
	Total   int
	Message string
}

// ProgressFunc receives pull progress events. A nil ProgressFunc is valid
// and disables reporting. Callbacks run synchronously on the pull
// goroutine; keep them fast.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(p Progress) {
	if f != nil {
		f(p)
	}
}
