package metrics

import "time"

// ResultLabel is the outcome label attached to operation observations.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailure ResultLabel = "failure"
)

// Recorder defines the observability hooks used by the content, progress and
// database layers. All methods must be cheap; NoopRecorder is the default.
type Recorder interface {
	ObserveOperation(op string, d time.Duration, result ResultLabel)
	IncCacheLookup(hit bool)
	IncCacheEviction()
	SetCacheBytes(n int64)
	SetLanguagesLoaded(n int)
	IncProgressUpdate(language string, completed bool)
	IncBackup(success bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperation(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncCacheLookup(bool)                                 {}
func (NoopRecorder) IncCacheEviction()                                   {}
func (NoopRecorder) SetCacheBytes(int64)                                 {}
func (NoopRecorder) SetLanguagesLoaded(int)                              {}
func (NoopRecorder) IncProgressUpdate(string, bool)                      {}
func (NoopRecorder) IncBackup(bool)                                      {}

// ResultFor maps an error to a result label.
func ResultFor(err error) ResultLabel {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
