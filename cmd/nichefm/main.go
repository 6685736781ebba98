// Command nichefm generates a niche playlist for a user on the streaming
// service, given a genre, language, and niche level.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nichefm/nichefm/internal/domain"
	"github.com/nichefm/nichefm/internal/exclusioncache"
	"github.com/nichefm/nichefm/internal/finder"
	"github.com/nichefm/nichefm/internal/genre"
	"github.com/nichefm/nichefm/internal/metadata"
	"github.com/nichefm/nichefm/internal/playlist"
	"github.com/nichefm/nichefm/internal/scrobble"
	"github.com/nichefm/nichefm/internal/streaming"
	"github.com/nichefm/nichefm/internal/validator"
	"github.com/nichefm/nichefm/pkg/cache"
	"github.com/nichefm/nichefm/pkg/config"
	"github.com/nichefm/nichefm/pkg/objstore"
	"github.com/nichefm/nichefm/pkg/ratelimit"
	"github.com/nichefm/nichefm/pkg/store"
)

var (
	flagStreamingUserID string
	flagDisplayName     string
	flagGenre           string
	flagLanguage        string
	flagNicheLevel      string
	flagPublic          bool
)

var rootCmd = &cobra.Command{
	Use:   "nichefm",
	Short: "Generate a niche playlist from an artist catalog",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&flagStreamingUserID, "streaming-user-id", "", "Streaming-service user id to own the generated playlist")
	rootCmd.Flags().StringVar(&flagDisplayName, "display-name", "", "Display name for a newly created local user record")
	rootCmd.Flags().StringVar(&flagGenre, "genre", "", "Genre to generate a playlist for")
	rootCmd.Flags().StringVar(&flagLanguage, "language", string(domain.LanguageAny), "Language filter: any | english | other")
	rootCmd.Flags().StringVar(&flagNicheLevel, "niche-level", string(domain.NicheModerately), "Niche level: very | moderately | only_kinda")
	rootCmd.Flags().BoolVar(&flagPublic, "public", false, "Record the request as public (stored on the request only; the streaming playlist is always created public)")
	_ = rootCmd.MarkFlagRequired("streaming-user-id")
	_ = rootCmd.MarkFlagRequired("genre")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("nichefm: fatal", "err", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv()

	s, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	kv, err := newRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer kv.Close()

	covers, err := newObjectStore(ctx, cfg)
	if err != nil {
		slog.Warn("nichefm: cover object store unavailable, proceeding without covers", "err", err)
		covers = nil
	}

	resp := cache.NewResponseCache(kv, 24*time.Hour)

	metadataLimiter, err := newLimiter(ctx, kv, cfg, "metadata", time.Second)
	if err != nil {
		return err
	}
	scrobbleLimiter, err := newLimiter(ctx, kv, cfg, "scrobble", 200*time.Millisecond)
	if err != nil {
		return err
	}
	streamingLimiter, err := newLimiter(ctx, kv, cfg, "streaming", 250*time.Millisecond)
	if err != nil {
		return err
	}

	metadataClient := metadata.New(cfg.MetadataUserAgent, metadataLimiter, resp)
	scrobbleClient := scrobble.New(cfg.ScrobbleAPIKey, scrobbleLimiter, resp)
	streamingClient := streaming.New(ctx, cfg.StreamingClientID, cfg.StreamingClientSecret, streamingLimiter)

	catalog := genre.Load()
	if !catalog.Supports(flagGenre) {
		return fmt.Errorf("genre %q is not supported", flagGenre)
	}

	user, err := s.GetUserByStreamingID(ctx, flagStreamingUserID)
	if err != nil {
		user, err = s.CreateUser(ctx, store.CreateUserParams{
			ID:          flagStreamingUserID,
			DisplayName: flagDisplayName,
			StreamingID: flagStreamingUserID,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
	}

	language := domain.Language(flagLanguage)
	nicheLevel := domain.NicheLevel(flagNicheLevel)
	bands, ok := domain.NicheLevelBands[nicheLevel]
	if !ok {
		return fmt.Errorf("unknown niche level %q", flagNicheLevel)
	}

	requests := playlist.NewRequests(s)
	req, err := requests.Create(ctx, playlist.CreateRequestParams{
		UserID:     user.ID,
		Language:   flagLanguage,
		Genre:      flagGenre,
		NicheLevel: flagNicheLevel,
		Public:     flagPublic,
	})
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	exclusions, err := exclusioncache.Load(ctx, s, flagLanguage, flagGenre, flagNicheLevel)
	if err != nil {
		return fmt.Errorf("load exclusion cache: %w", err)
	}

	scrobbleGenre := flagGenre
	if converted, ok := catalog.Convert(genre.Streaming, genre.Scrobble, flagGenre); ok {
		scrobbleGenre = converted
	}

	v := validator.New(validator.Params{
		Bands:         bands,
		LikenessMin:   domain.LikenessMin,
		Language:      language,
		ScrobbleGenre: scrobbleGenre,
		MinYear:       1900,
		MinSeconds:    60,
		MaxSeconds:    900,
	}, catalog, metadataClient)

	artists, err := s.ListArtistsByGenre(ctx, store.ListArtistsByGenreParams{Genre: flagGenre, Limit: 5000})
	if err != nil {
		return fmt.Errorf("list artists: %w", err)
	}

	f := finder.New(s, catalog, v, exclusions, scrobbleClient, streamingClient, requests, req.ID, finder.Params{
		UserID:            user.StreamingID,
		Genre:             flagGenre,
		Language:          language,
		NicheLevel:        nicheLevel,
		PlaylistMinLength: domain.PlaylistMinLength,
		PlaylistMaxLength: domain.PlaylistMaxLength,
	})

	started := time.Now()
	selected, err := f.Find(ctx, artists)
	if err != nil {
		return fmt.Errorf("find niche tracks: %w", err)
	}
	elapsed := time.Since(started)

	tracks := make([]playlist.SelectedTrack, 0, len(selected))
	for _, sel := range selected {
		st, ok := sel.Track.Streaming()
		if !ok {
			continue
		}
		tracks = append(tracks, playlist.SelectedTrack{
			ArtistName: sel.ArtistName,
			TrackName:  sel.Track.Name,
			URI:        st.URI,
			URL:        st.URL,
		})
	}

	name := fmt.Sprintf("Niche %s Songs", flagGenre)
	description := "Courtesy of the niche app :) (http://niche-app.net)"

	playlists := playlist.NewPlaylists(s, streamingClient, covers)
	pl, err := playlists.Create(ctx, user.StreamingID, name, description, flagGenre, tracks, req)
	if err != nil {
		return fmt.Errorf("create playlist: %w", err)
	}

	minutes := elapsed.Minutes()
	if err := s.UpdatePlaylistLength(ctx, store.UpdatePlaylistLengthParams{ID: pl.ID, GeneratedLength: len(tracks)}); err != nil {
		slog.Warn("nichefm: could not refresh playlist length", "err", err)
	}
	_ = minutes

	slog.Info("nichefm: playlist generated", "playlist_id", pl.ID, "streaming_url", pl.StreamingURL, "length", len(tracks), "elapsed", elapsed)
	return nil
}

func newLimiter(ctx context.Context, kv *redis.Client, cfg config.Config, service string, interval time.Duration) (ratelimit.Limiter, error) {
	if cfg.RateLimitBackend == "redis" {
		return cache.NewRedisLimiter(kv, service, interval), nil
	}
	return ratelimit.NewLocal(interval), nil
}

func newRedisClient(cfg config.Config) (*redis.Client, error) {
	if cfg.KVMode == "sentinel" {
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.KVSentinelMaster,
			SentinelAddrs: cfg.KVSentinelAddrs,
		}), nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.KVAddr}), nil
}

func newObjectStore(ctx context.Context, cfg config.Config) (objstore.ObjectStore, error) {
	if cfg.StoreBackend == "s3" {
		return objstore.NewS3(ctx, objstore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.StoreBucket,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return objstore.NewLocalFS(cfg.StoreRoot)
}
