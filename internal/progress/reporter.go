// Package progress implements C8: an atomic JSON snapshot writer the
// coordinator pushes state to after every album and every phase transition
// (spec §4.8). The write-to-temp-then-rename idiom is grounded on the
// teacher pack's Ambrevar-demlo pathutil.go TempFile helper, generalized from
// "a scratch file for one transform" to "a snapshot file rewritten on every
// progress tick."
package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"albumscan/internal/interfaces"
)

// Reporter is C8. Safe for concurrent use: every method takes the mutex.
type Reporter struct {
	mu   sync.Mutex
	path string

	snap      interfaces.Snapshot
	startedAt time.Time
}

// New constructs a Reporter that writes snapshots to path.
func New(path string) *Reporter {
	return &Reporter{
		path: path,
		snap: interfaces.Snapshot{
			IsRunning: false,
		},
	}
}

func (r *Reporter) SetScanType(scanType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.ScanType = scanType
	r.snap.IsRunning = true
	r.startedAt = time.Now()
	r.snap.StartedAt = r.startedAt.Format(time.RFC3339)
	r.touch()
	r.writeLocked()
}

func (r *Reporter) BeginArtist(name string, totalArtists int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.CurrentArtist = name
	r.snap.TotalArtists = totalArtists
	r.touch()
	r.writeLocked()
}

func (r *Reporter) BeginAlbum(name string, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.CurrentAlbum = name
	r.snap.CurrentPhase = phase
	r.touch()
	r.writeLocked()
}

func (r *Reporter) SetPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.CurrentPhase = phase
	r.touch()
	r.writeLocked()
}

// CompleteAlbum adds one finished album's track count to processed_tracks.
// It leaves percent_complete alone; IncrementProcessedArtists derives that
// from the processed/total artist ratio.
func (r *Reporter) CompleteAlbum(tracksScanned int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.ProcessedTracks += tracksScanned
	r.touch()
	r.writeLocked()
}

// Finish marks the run complete and writes the final snapshot.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.IsRunning = false
	r.snap.CurrentPhase = "done"
	r.snap.PercentComplete = 100
	r.touch()
	r.writeLocked()
}

// Snapshot returns a copy of the current state (spec §4.8, e.g. for a status
// subcommand to print without re-reading the file).
func (r *Reporter) Snapshot() interfaces.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// IncrementProcessedArtists advances the processed-artist count used for
// percent_complete; called by the coordinator once an artist's albums are
// all committed.
func (r *Reporter) IncrementProcessedArtists() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.ProcessedArtists++
	if r.snap.TotalArtists > 0 {
		r.snap.PercentComplete = 100 * float64(r.snap.ProcessedArtists) / float64(r.snap.TotalArtists)
	}
	r.touch()
	r.writeLocked()
}

// SetTotalTracks records the library-wide track total once known;
// percent_complete stays based on the artist ratio.
func (r *Reporter) SetTotalTracks(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.TotalTracks = total
	r.touch()
	r.writeLocked()
}

func (r *Reporter) touch() {
	now := time.Now()
	r.snap.LastUpdateAt = now.Format(time.RFC3339)
	if !r.startedAt.IsZero() {
		r.snap.ElapsedSeconds = now.Sub(r.startedAt).Seconds()
	}
}

// writeLocked serializes the current snapshot to a temp file in the same
// directory as path and renames it into place, so a reader never observes a
// partially written document (spec §4.8: "atomic write").
func (r *Reporter) writeLocked() {
	data, err := json.MarshalIndent(r.snap, "", "  ")
	if err != nil {
		return
	}

	dir := filepath.Dir(r.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	os.Rename(tmpName, r.path)
}
