package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"demodrop/internal/config"
)

// ErrNoRecord indicates a field update targeted a record that no longer exists.
var ErrNoRecord = errors.New("record does not exist")

// Store manages submission and track persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	feed *feed
}

// Open initializes or connects to the records database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "records.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, feed: newFeed()}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection and the change feed.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.feed.closeAll()
	return s.db.Close()
}

// Path returns the on-disk location of the records database.
func (s *Store) Path() string {
	return s.path
}

// InsertSubmission persists a new submission, assigning an identifier and
// timestamps when absent.
func (s *Store) InsertSubmission(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return errors.New("submission is nil")
	}
	if strings.TrimSpace(sub.Name) == "" || strings.TrimSpace(sub.Email) == "" {
		return errors.New("submission requires name and email")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO submissions (
            id, name, email, bio, instagram, spotify, status, rating, notes,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.Name,
		sub.Email,
		nullableString(sub.Bio),
		nullableString(sub.Instagram),
		nullableString(sub.Spotify),
		string(sub.Status),
		sub.Rating,
		nullableString(sub.Notes),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	s.feed.publish(Change{Table: TableSubmissions, Kind: ChangeInsert, ID: sub.ID})
	return nil
}

// InsertTrack persists a new track belonging to an existing submission.
func (s *Store) InsertTrack(ctx context.Context, track *Track) error {
	if track == nil {
		return errors.New("track is nil")
	}
	if track.SubmissionID == "" {
		return errors.New("track requires a submission id")
	}
	if strings.TrimSpace(track.FileLocation) == "" {
		return errors.New("track requires a file location")
	}
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	track.CreatedAt = now
	track.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tracks (
            id, submission_id, title, genre, bpm, key_signature, description,
            file_location, container_format, duration_seconds, bitrate_bps,
            sample_rate_hz, codec, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		track.ID,
		track.SubmissionID,
		nullableString(track.Title),
		nullableString(track.Genre),
		nullableString(track.BPM),
		nullableString(track.KeySignature),
		nullableString(track.Description),
		track.FileLocation,
		nullableString(track.ContainerFormat),
		track.DurationSeconds,
		track.BitrateBps,
		track.SampleRateHz,
		nullableString(track.Codec),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}

	s.feed.publish(Change{Table: TableTracks, Kind: ChangeInsert, ID: track.ID})
	return nil
}

// GetSubmission fetches a submission by identifier, returning nil when absent.
func (s *Store) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// GetTrack fetches a track by identifier, returning nil when absent.
func (s *Store) GetTrack(ctx context.Context, id string) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// ListSubmissions returns all submissions ordered by creation time descending,
// matching the reviewer dashboard's newest-first presentation.
func (s *Store) ListSubmissions(ctx context.Context) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// TracksForSubmission returns a submission's tracks ordered by creation time.
func (s *Store) TracksForSubmission(ctx context.Context, submissionID string) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE submission_id = ? ORDER BY created_at`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// Fields is a partial field-level update keyed by exported field name.
type Fields map[string]any

var submissionFieldColumns = map[string]string{
	"status": "status",
	"rating": "rating",
	"notes":  "notes",
}

var trackFieldColumns = map[string]string{
	"title":            "title",
	"genre":            "genre",
	"bpm":              "bpm",
	"key_signature":    "key_signature",
	"description":      "description",
	"container_format": "container_format",
	"duration_seconds": "duration_seconds",
	"bitrate_bps":      "bitrate_bps",
	"sample_rate_hz":   "sample_rate_hz",
	"codec":            "codec",
}

// UpdateSubmissionFields applies a field-level merge to a submission. Fields
// not named are left untouched. Returns ErrNoRecord when the submission is gone.
func (s *Store) UpdateSubmissionFields(ctx context.Context, id string, fields Fields) error {
	return s.updateFields(ctx, TableSubmissions, "submissions", submissionFieldColumns, id, fields)
}

// UpdateTrackFields applies a field-level merge to a track. Fields not named
// are left untouched. Returns ErrNoRecord when the track is gone.
func (s *Store) UpdateTrackFields(ctx context.Context, id string, fields Fields) error {
	return s.updateFields(ctx, TableTracks, "tracks", trackFieldColumns, id, fields)
}

func (s *Store) updateFields(ctx context.Context, table Table, sqlTable string, allowed map[string]string, id string, fields Fields) error {
	if len(fields) == 0 {
		return errors.New("no fields to update")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := allowed[name]; !ok {
			return fmt.Errorf("unknown %s field %q", sqlTable, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		assignments = append(assignments, allowed[name]+" = ?")
		args = append(args, fields[name])
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), id)

	query := "UPDATE " + sqlTable + " SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s fields: %w", sqlTable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %s", ErrNoRecord, sqlTable, id)
	}

	s.feed.publish(Change{Table: table, Kind: ChangeUpdate, ID: id})
	return nil
}

const submissionColumns = "id, name, email, bio, instagram, spotify, status, rating, notes, created_at, updated_at"

const trackColumns = "id, submission_id, title, genre, bpm, key_signature, description, file_location, container_format, duration_seconds, bitrate_bps, sample_rate_hz, codec, created_at, updated_at"

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*Submission, error) {
	var (
		bio, instagram, spotify, notes sql.NullString
		createdRaw, updatedRaw         string
		status                         string
	)
	sub := &Submission{}
	if err := scanner.Scan(
		&sub.ID,
		&sub.Name,
		&sub.Email,
		&bio,
		&instagram,
		&spotify,
		&status,
		&sub.Rating,
		&notes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	sub.Bio = bio.String
	sub.Instagram = instagram.String
	sub.Spotify = spotify.String
	sub.Notes = notes.String
	sub.Status = ReviewStatus(status)
	sub.CreatedAt = parseTimeString(createdRaw)
	sub.UpdatedAt = parseTimeString(updatedRaw)
	return sub, nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		title, genre, bpm, keySig, desc sql.NullString
		container, codec                sql.NullString
		duration                        sql.NullFloat64
		bitrate, sampleRate             sql.NullInt64
		createdRaw, updatedRaw          string
	)
	track := &Track{}
	if err := scanner.Scan(
		&track.ID,
		&track.SubmissionID,
		&title,
		&genre,
		&bpm,
		&keySig,
		&desc,
		&track.FileLocation,
		&container,
		&duration,
		&bitrate,
		&sampleRate,
		&codec,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	track.Title = title.String
	track.Genre = genre.String
	track.BPM = bpm.String
	track.KeySignature = keySig.String
	track.Description = desc.String
	track.ContainerFormat = container.String
	track.DurationSeconds = duration.Float64
	track.BitrateBps = bitrate.Int64
	track.SampleRateHz = sampleRate.Int64
	track.Codec = codec.String
	track.CreatedAt = parseTimeString(createdRaw)
	track.UpdatedAt = parseTimeString(updatedRaw)
	return track, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t
	}
	return time.Time{}
}
