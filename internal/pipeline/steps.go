package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"demodrop/internal/mediameta"
	"demodrop/internal/records"
)

const (
	StepFetchAsset      = "fetch_asset"
	StepExtractMetadata = "extract_metadata"
	StepPersistMetadata = "persist_metadata"
)

// runState carries data between steps within a single run. Hydrators rebuild
// it from ledger outputs when a run resumes past completed steps.
type runState struct {
	track     *records.Track
	spoolPath string
	meta      mediameta.Metadata
	haveMeta  bool
}

// step pairs an executor with a hydrator. The hydrator restores state from a
// memoized output; returning false forces the step to run again, which covers
// a spool file lost between runs.
type step struct {
	name    string
	execute func(ctx context.Context, r *Runner, job *Job, state *runState) (map[string]string, error)
	hydrate func(r *Runner, job *Job, state *runState, output map[string]string) bool
}

var stepSequence = []step{
	{name: StepFetchAsset, execute: executeFetchAsset, hydrate: hydrateFetchAsset},
	{name: StepExtractMetadata, execute: executeExtractMetadata, hydrate: hydrateExtractMetadata},
	{name: StepPersistMetadata, execute: executePersistMetadata, hydrate: hydratePersistMetadata},
}

func executeFetchAsset(ctx context.Context, r *Runner, job *Job, state *runState) (map[string]string, error) {
	track, err := r.records.GetTrack(ctx, job.TrackID)
	if err != nil {
		return nil, fmt.Errorf("load track: %w", err)
	}
	if track == nil {
		return nil, fmt.Errorf("%w: track %s missing before fetch", ErrPersistConflict, job.TrackID)
	}
	state.track = track

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	data, err := r.assets.Fetch(fetchCtx, track.FileLocation)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetUnreachable, track.FileLocation, err)
	}

	spoolPath := filepath.Join(r.spoolDir, job.ID+".asset")
	if err := os.WriteFile(spoolPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("spool asset: %w", err)
	}
	state.spoolPath = spoolPath

	return map[string]string{
		"spool_path": spoolPath,
		"size_bytes": strconv.Itoa(len(data)),
	}, nil
}

func hydrateFetchAsset(r *Runner, job *Job, state *runState, output map[string]string) bool {
	spoolPath := output["spool_path"]
	if spoolPath == "" {
		return false
	}
	if _, err := os.Stat(spoolPath); err != nil {
		return false
	}
	state.spoolPath = spoolPath
	return true
}

func executeExtractMetadata(ctx context.Context, r *Runner, job *Job, state *runState) (map[string]string, error) {
	data, err := os.ReadFile(state.spoolPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: spooled asset vanished: %s", ErrAssetUnreachable, state.spoolPath)
		}
		return nil, fmt.Errorf("read spooled asset: %w", err)
	}

	meta, err := mediameta.Parse(data)
	if err != nil {
		return nil, err
	}
	state.meta = meta
	state.haveMeta = true

	return map[string]string{
		"container_format": meta.ContainerFormat,
		"codec":            meta.Codec,
		"duration_seconds": strconv.FormatFloat(meta.DurationSeconds, 'f', -1, 64),
		"bitrate_bps":      strconv.FormatInt(meta.BitrateBps, 10),
		"sample_rate_hz":   strconv.FormatInt(meta.SampleRateHz, 10),
	}, nil
}

func hydrateExtractMetadata(r *Runner, job *Job, state *runState, output map[string]string) bool {
	if output["container_format"] == "" && output["codec"] == "" {
		return false
	}
	duration, _ := strconv.ParseFloat(output["duration_seconds"], 64)
	bitrate, _ := strconv.ParseInt(output["bitrate_bps"], 10, 64)
	sampleRate, _ := strconv.ParseInt(output["sample_rate_hz"], 10, 64)
	state.meta = mediameta.Metadata{
		ContainerFormat: output["container_format"],
		Codec:           output["codec"],
		DurationSeconds: duration,
		BitrateBps:      bitrate,
		SampleRateHz:    sampleRate,
	}
	state.haveMeta = true
	return true
}

// executePersistMetadata merges only fields the extractor produced, so
// submitter-entered values on the track are never clobbered.
func executePersistMetadata(ctx context.Context, r *Runner, job *Job, state *runState) (map[string]string, error) {
	if !state.haveMeta {
		return nil, errors.New("no extracted metadata in state")
	}

	fields := records.Fields{}
	if state.meta.ContainerFormat != "" {
		fields["container_format"] = state.meta.ContainerFormat
	}
	if state.meta.Codec != "" {
		fields["codec"] = state.meta.Codec
	}
	if state.meta.DurationSeconds > 0 {
		fields["duration_seconds"] = state.meta.DurationSeconds
	}
	if state.meta.BitrateBps > 0 {
		fields["bitrate_bps"] = state.meta.BitrateBps
	}
	if state.meta.SampleRateHz > 0 {
		fields["sample_rate_hz"] = state.meta.SampleRateHz
	}
	if len(fields) == 0 {
		return map[string]string{"persisted": "0"}, nil
	}

	if err := r.records.UpdateTrackFields(ctx, job.TrackID, fields); err != nil {
		if errors.Is(err, records.ErrNoRecord) {
			return nil, fmt.Errorf("%w: track %s deleted before persistence", ErrPersistConflict, job.TrackID)
		}
		return nil, fmt.Errorf("persist metadata: %w", err)
	}
	return map[string]string{"persisted": strconv.Itoa(len(fields))}, nil
}

func hydratePersistMetadata(r *Runner, job *Job, state *runState, output map[string]string) bool {
	return output["persisted"] != ""
}
