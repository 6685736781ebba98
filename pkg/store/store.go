package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store holds the connection pool.
// Services receive a Store; tests can substitute a mock.
type Store struct {
	pool *pgxpool.Pool
}

// Connect connects to Postgres using the given DSN and returns a Store.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that Postgres is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ErrNotFound is returned when a row lookup by id finds nothing.
var ErrNotFound = errors.New("store: not found")

// --- users ---------------------------------------------------------------

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	var u User
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, display_name, streaming_id) VALUES ($1, $2, $3)
		 RETURNING id, display_name, streaming_id, created_at`,
		p.ID, p.DisplayName, p.StreamingID)
	err := row.Scan(&u.ID, &u.DisplayName, &u.StreamingID, &u.CreatedAt)
	return u, mapErr(err)
}

// GetUserByStreamingID returns a user by their streaming-service id.
func (s *Store) GetUserByStreamingID(ctx context.Context, streamingID string) (User, error) {
	var u User
	row := s.pool.QueryRow(ctx,
		`SELECT id, display_name, streaming_id, created_at FROM users WHERE streaming_id = $1`,
		streamingID)
	err := row.Scan(&u.ID, &u.DisplayName, &u.StreamingID, &u.CreatedAt)
	return u, mapErr(err)
}

// --- artist catalog (read-only to the core) -------------------------------

// UpsertArtistCatalogEntry inserts or updates a catalog artist, the write
// path of the out-of-scope ingestion scripts.
func (s *Store) UpsertArtistCatalogEntry(ctx context.Context, p UpsertArtistCatalogEntryParams) (ArtistCatalogEntry, error) {
	genresJSON, err := json.Marshal(p.Genres)
	if err != nil {
		return ArtistCatalogEntry{}, fmt.Errorf("marshal genres: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO artists (id, metadata_id, name, genres)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, genres = EXCLUDED.genres
		 RETURNING id, metadata_id, name, genres, enriched_at`,
		p.ID, p.MetadataID, p.Name, genresJSON)
	return scanArtistCatalogEntry(row)
}

// ListArtistsByGenre returns catalog artists whose genres list contains an
// element with the given name (exact match), honoring the ArtistCatalog
// invariant of an exact genre-name match on any element.
func (s *Store) ListArtistsByGenre(ctx context.Context, p ListArtistsByGenreParams) ([]ArtistCatalogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, metadata_id, name, genres, enriched_at FROM artists
		 WHERE genres @> jsonb_build_array(jsonb_build_object('name', $1::text))
		    OR EXISTS (SELECT 1 FROM jsonb_array_elements(genres) g WHERE g->>'name' = $1)
		 ORDER BY name ASC LIMIT $2`,
		p.Genre, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ArtistCatalogEntry
	for rows.Next() {
		e, err := scanArtistCatalogEntryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanArtistCatalogEntry(row pgx.Row) (ArtistCatalogEntry, error) {
	var e ArtistCatalogEntry
	var genresJSON []byte
	var enrichedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.MetadataID, &e.Name, &genresJSON, &enrichedAt); err != nil {
		return ArtistCatalogEntry{}, mapErr(err)
	}
	if err := json.Unmarshal(genresJSON, &e.Genres); err != nil {
		return ArtistCatalogEntry{}, fmt.Errorf("unmarshal genres: %w", err)
	}
	if enrichedAt.Valid {
		e.EnrichedAt = &enrichedAt.Time
	}
	return e, nil
}

func scanArtistCatalogEntryRow(rows pgx.Rows) (ArtistCatalogEntry, error) {
	var e ArtistCatalogEntry
	var genresJSON []byte
	var enrichedAt sql.NullTime
	if err := rows.Scan(&e.ID, &e.MetadataID, &e.Name, &genresJSON, &enrichedAt); err != nil {
		return ArtistCatalogEntry{}, err
	}
	if err := json.Unmarshal(genresJSON, &e.Genres); err != nil {
		return ArtistCatalogEntry{}, fmt.Errorf("unmarshal genres: %w", err)
	}
	if enrichedAt.Valid {
		e.EnrichedAt = &enrichedAt.Time
	}
	return e, nil
}

// --- requests --------------------------------------------------------------

// CreateRequest persists a new generation request.
func (s *Store) CreateRequest(ctx context.Context, p CreateRequestParams) (Request, error) {
	paramsJSON, err := json.Marshal(p.Params)
	if err != nil {
		return Request{}, fmt.Errorf("marshal params: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO requests (id, user_id, params, stats) VALUES ($1, $2, $3, '{}')
		 RETURNING id, user_id, params, stats, playlist_id, created_at, updated_at`,
		p.ID, p.UserID, paramsJSON)
	return scanRequest(row)
}

// GetRequestByID returns a request by id.
func (s *Store) GetRequestByID(ctx context.Context, id string) (Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, params, stats, playlist_id, created_at, updated_at FROM requests WHERE id = $1`,
		id)
	return scanRequest(row)
}

// UpdateRequestStats overwrites the stats sub-document for a request.
func (s *Store) UpdateRequestStats(ctx context.Context, p UpdateRequestStatsParams) (Request, error) {
	stats := RequestStats{
		PercentArtistsValid:    p.PercentArtistsValid,
		AverageArtistFollowers: p.AverageArtistFollowers,
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return Request{}, fmt.Errorf("marshal stats: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE requests SET stats = $2, updated_at = now() WHERE id = $1
		 RETURNING id, user_id, params, stats, playlist_id, created_at, updated_at`,
		p.ID, statsJSON)
	return scanRequest(row)
}

// LinkRequestPlaylist sets or clears a request's generated_playlist
// reference.
func (s *Store) LinkRequestPlaylist(ctx context.Context, p LinkRequestPlaylistParams) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requests SET playlist_id = $2, updated_at = now() WHERE id = $1`,
		p.RequestID, p.PlaylistID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentPercentArtistsValid returns the most recent non-null
// percent_artists_valid values recorded for requests of the given genre, most
// recent first. Used by the Finder's target-sizing formula (§4.6 step 2).
func (s *Store) RecentPercentArtistsValid(ctx context.Context, p RecentPercentArtistsValidParams) ([]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT (stats->>'percent_artists_valid')::double precision FROM requests
		 WHERE params->>'genre' = $1 AND stats ? 'percent_artists_valid' AND stats->>'percent_artists_valid' IS NOT NULL
		 ORDER BY updated_at DESC LIMIT $2`,
		p.Genre, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	var paramsJSON, statsJSON []byte
	var playlistID sql.NullString
	if err := row.Scan(&r.ID, &r.UserID, &paramsJSON, &statsJSON, &playlistID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Request{}, mapErr(err)
	}
	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return Request{}, fmt.Errorf("unmarshal params: %w", err)
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return Request{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	if playlistID.Valid {
		r.PlaylistID = &playlistID.String
	}
	return r, nil
}

// --- playlists ---------------------------------------------------------------

// CreatePlaylist persists a new playlist record and links it to its request.
func (s *Store) CreatePlaylist(ctx context.Context, p CreatePlaylistParams) (Playlist, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO playlists (id, user_id, name, description, streaming_id, streaming_url, request_id, generated_length, time_to_generate_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, user_id, name, description, streaming_id, streaming_url, request_id, generated_length, time_to_generate_minutes, created_at`,
		p.ID, p.UserID, p.Name, p.Description, p.StreamingID, p.StreamingURL, p.RequestID, p.GeneratedLength, p.TimeToGenerateMinutes)
	pl, err := scanPlaylist(row)
	if err != nil {
		return Playlist{}, err
	}
	if err := s.LinkRequestPlaylist(ctx, LinkRequestPlaylistParams{RequestID: p.RequestID, PlaylistID: &pl.ID}); err != nil {
		return Playlist{}, fmt.Errorf("link request to playlist: %w", err)
	}
	return pl, nil
}

// GetPlaylistByID returns a playlist by id.
func (s *Store) GetPlaylistByID(ctx context.Context, id string) (Playlist, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, streaming_id, streaming_url, request_id, generated_length, time_to_generate_minutes, created_at
		 FROM playlists WHERE id = $1`,
		id)
	return scanPlaylist(row)
}

// UpdatePlaylistLength refreshes the best-effort track-count mirror kept on a
// playlist record after an add/remove against the streaming service.
func (s *Store) UpdatePlaylistLength(ctx context.Context, p UpdatePlaylistLengthParams) error {
	_, err := s.pool.Exec(ctx, `UPDATE playlists SET generated_length = $2 WHERE id = $1`, p.ID, p.GeneratedLength)
	return err
}

// DeletePlaylist removes a playlist record and clears the back-reference on
// its request, satisfying the C7 deletion contract.
func (s *Store) DeletePlaylist(ctx context.Context, p DeletePlaylistParams) error {
	pl, err := s.GetPlaylistByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, p.ID); err != nil {
		return err
	}
	return s.LinkRequestPlaylist(ctx, LinkRequestPlaylistParams{RequestID: pl.RequestID, PlaylistID: nil})
}

func scanPlaylist(row pgx.Row) (Playlist, error) {
	var p Playlist
	var minutes sql.NullFloat64
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.StreamingID, &p.StreamingURL, &p.RequestID,
		&p.GeneratedLength, &minutes, &p.CreatedAt); err != nil {
		return Playlist{}, mapErr(err)
	}
	if minutes.Valid {
		p.TimeToGenerateMinutes = &minutes.Float64
	}
	return p, nil
}

// --- exclusion cache ---------------------------------------------------------

// EnsureExclusionEntry creates an empty requests_cache entry for the given
// key if one doesn't already exist, and always returns the current entry.
// Idempotent, per the C4 contract.
func (s *Store) EnsureExclusionEntry(ctx context.Context, p EnsureExclusionEntryParams) (ExclusionCacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO requests_cache (id, language, genre, niche_level, excluded)
		 VALUES ($1, $2, $3, $4, '[]')
		 ON CONFLICT (language, genre, niche_level) DO UPDATE SET updated_at = requests_cache.updated_at
		 RETURNING id, language, genre, niche_level, excluded, created_at, updated_at`,
		p.ID, p.Language, p.Genre, p.NicheLevel)
	return scanExclusionEntry(row)
}

// GetExclusionEntry returns an entry by id.
func (s *Store) GetExclusionEntry(ctx context.Context, id string) (ExclusionCacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, language, genre, niche_level, excluded, created_at, updated_at FROM requests_cache WHERE id = $1`,
		id)
	return scanExclusionEntry(row)
}

// PutExcludedArtist upserts a single excluded artist within an entry's
// excluded list, keyed by metadata_id, last-writer-wins.
func (s *Store) PutExcludedArtist(ctx context.Context, p PutExcludedArtistParams) error {
	entry, err := s.GetExclusionEntry(ctx, p.EntryID)
	if err != nil {
		return err
	}
	replaced := false
	for i, e := range entry.Excluded {
		if e.MetadataID == p.Excluded.MetadataID {
			entry.Excluded[i] = p.Excluded
			replaced = true
			break
		}
	}
	if !replaced {
		entry.Excluded = append(entry.Excluded, p.Excluded)
	}
	return s.writeExcluded(ctx, p.EntryID, entry.Excluded)
}

// RemoveExcludedArtist removes a single excluded artist from an entry's
// excluded list by metadata_id. A no-op if absent.
func (s *Store) RemoveExcludedArtist(ctx context.Context, p RemoveExcludedArtistParams) error {
	entry, err := s.GetExclusionEntry(ctx, p.EntryID)
	if err != nil {
		return err
	}
	out := entry.Excluded[:0]
	for _, e := range entry.Excluded {
		if e.MetadataID != p.MetadataID {
			out = append(out, e)
		}
	}
	return s.writeExcluded(ctx, p.EntryID, out)
}

func (s *Store) writeExcluded(ctx context.Context, entryID string, excluded []ExcludedArtist) error {
	if excluded == nil {
		excluded = []ExcludedArtist{}
	}
	excludedJSON, err := json.Marshal(excluded)
	if err != nil {
		return fmt.Errorf("marshal excluded: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE requests_cache SET excluded = $2, updated_at = now() WHERE id = $1`,
		entryID, excludedJSON)
	return err
}

func scanExclusionEntry(row pgx.Row) (ExclusionCacheEntry, error) {
	var e ExclusionCacheEntry
	var excludedJSON []byte
	if err := row.Scan(&e.ID, &e.Language, &e.Genre, &e.NicheLevel, &excludedJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return ExclusionCacheEntry{}, mapErr(err)
	}
	if len(excludedJSON) > 0 {
		if err := json.Unmarshal(excludedJSON, &e.Excluded); err != nil {
			return ExclusionCacheEntry{}, fmt.Errorf("unmarshal excluded: %w", err)
		}
	}
	return e, nil
}

// --- helpers -----------------------------------------------------------------

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres %s: %w", pgErr.Code, err)
	}
	return err
}
