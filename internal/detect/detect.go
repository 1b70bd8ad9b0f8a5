// Package detect decides which declared template entries are out of date.
// It compares the freshly assembled build description against the previous
// run's persisted description and the filesystem, and partitions every entry
// into stale (must be reprocessed) or fresh (output can be kept as is).
package detect

import (
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
)

// Partition is the stale/fresh split of one build's entries. Fresh entries
// retain their previous dependencies verbatim; stale entries enter
// processing with dependencies cleared.
type Partition struct {
	StaleTransform     []buildstate.TemplateEntry
	FreshTransform     []buildstate.TemplateEntry
	StalePreprocess    []buildstate.TemplateEntry
	FreshPreprocess    []buildstate.TemplateEntry
	GlobalsInvalidated bool
}

// StaleCount returns the total number of stale entries.
func (p Partition) StaleCount() int {
	return len(p.StaleTransform) + len(p.StalePreprocess)
}

// FreshCount returns the total number of fresh entries.
func (p Partition) FreshCount() int {
	return len(p.FreshTransform) + len(p.FreshPreprocess)
}

// Detector computes stale/fresh partitions.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a change detector.
func NewDetector() *Detector {
	return &Detector{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (d *Detector) WithLogger(logger *slog.Logger) *Detector {
	d.logger = logger
	return d
}

// Partition splits the current description's entries into stale and fresh.
//
// Globals are checked first: with no previous description, a differing
// format version, or any changed build-wide input, every entry is stale and
// per-file comparison is skipped entirely. Otherwise an entry is stale when
// its output is missing, its input is newer than its output, any previously
// recorded dependency is newer than its output, or it did not exist in the
// previous description. Entries that disappeared from the declaration are
// dropped silently; their outputs are left on disk.
func (d *Detector) Partition(prev, cur *buildstate.BuildDescription) Partition {
	var p Partition

	if !buildstate.GlobalsEqual(prev, cur) {
		p.GlobalsInvalidated = true
		p.StaleTransform = clearDependencies(cur.TransformEntries)
		p.StalePreprocess = clearDependencies(cur.PreprocessEntries)
		d.logger.Info("Build-wide inputs changed, reprocessing all entries",
			"cold_start", prev == nil,
			"entries", p.StaleCount())
		return p
	}

	prevIndex := buildstate.EntryIndex(prev)
	p.StaleTransform, p.FreshTransform = d.partitionEntries(cur.TransformEntries, prevIndex)
	p.StalePreprocess, p.FreshPreprocess = d.partitionEntries(cur.PreprocessEntries, prevIndex)

	d.logger.Debug("Partitioned entries", "stale", p.StaleCount(), "fresh", p.FreshCount())
	return p
}

func (d *Detector) partitionEntries(entries []buildstate.TemplateEntry, prevIndex map[string]buildstate.TemplateEntry) (stale, fresh []buildstate.TemplateEntry) {
	for _, entry := range entries {
		prevEntry, known := prevIndex[entry.Key()]
		if !known {
			d.logger.Debug("Entry is new", "input", entry.InputFile)
			stale = append(stale, clearEntry(entry))
			continue
		}

		reason := d.stalenessReason(entry, prevEntry)
		if reason == "" {
			kept := entry
			kept.Dependencies = prevEntry.Dependencies
			fresh = append(fresh, kept)
			continue
		}

		d.logger.Debug("Entry is out of date", "input", entry.InputFile, "reason", reason)
		stale = append(stale, clearEntry(entry))
	}
	return stale, fresh
}

// stalenessReason returns a non-empty reason when the entry must be
// reprocessed, consulting the previous entry's recorded dependencies.
func (d *Detector) stalenessReason(entry, prevEntry buildstate.TemplateEntry) string {
	outInfo, err := os.Stat(entry.OutputFile)
	if err != nil {
		return "output missing"
	}
	outTime := outInfo.ModTime()

	if newerThan(entry.InputFile, outTime) {
		return "input newer than output"
	}
	for _, dep := range prevEntry.Dependencies {
		if newerThan(dep, outTime) {
			return "dependency newer than output: " + dep
		}
	}
	return ""
}

// newerThan reports whether path's modification time is after t. A path
// that cannot be stat'ed counts as newer, forcing a reprocess.
func newerThan(path string, t time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.ModTime().After(t)
}

func clearDependencies(entries []buildstate.TemplateEntry) []buildstate.TemplateEntry {
	out := make([]buildstate.TemplateEntry, len(entries))
	for i, e := range entries {
		out[i] = clearEntry(e)
	}
	return out
}

func clearEntry(e buildstate.TemplateEntry) buildstate.TemplateEntry {
	e.Dependencies = nil
	return e
}
