// Package catalog manages songs and answers ownership questions against
// completed transactions.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/musichub/server/internal/cacheutil"
	"github.com/musichub/server/internal/schema"
	"github.com/musichub/server/internal/storage"
)

// Service reads and writes songs in the record store. Single-song reads
// go through a short TTL cache that every write on the same ID drops.
type Service struct {
	store    storage.RecordStore
	cols     storage.Collections
	validate *validator.Validate
	cache    *cacheutil.TTLCache[string, Song]
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the clock used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCacheTTL sets how long GetSong results are reused. Zero disables
// caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cache = cacheutil.New[string, Song](ttl) }
}

// WithCollections overrides the collection names.
func WithCollections(cols storage.Collections) Option {
	return func(s *Service) { s.cols = cols }
}

// NewService creates a catalog service. Caching is off unless
// WithCacheTTL is given.
func NewService(store storage.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cols:     storage.DefaultCollections(),
		validate: schema.NewValidator(),
		cache:    cacheutil.New[string, Song](0),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSong validates input and stores a new song with zeroed play
// statistics.
func (s *Service) CreateSong(ctx context.Context, in SongInput) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", validationError(err)
	}

	now := storage.NewTimestamp(s.now())
	song := Song{
		Title:       in.Title,
		Artist:      in.Artist,
		ArtistID:    in.ArtistID,
		Album:       in.Album,
		Description: in.Description,
		CoverURL:    in.CoverURL,
		AudioURL:    in.AudioURL,
		Price:       in.Price,
		IsPremium:   in.IsPremium,
		Duration:    in.Duration,
		Genre:       in.Genre,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc, err := storage.Encode(song)
	if err != nil {
		return "", err
	}
	id, err := s.store.Insert(ctx, s.cols.Songs, doc)
	if err != nil {
		return "", fmt.Errorf("insert song: %w", err)
	}
	return id, nil
}

// GetSong returns ErrSongNotFound for unknown IDs.
func (s *Service) GetSong(ctx context.Context, id string) (Song, error) {
	return s.cache.Get(id, func() (Song, error) {
		rec, err := s.store.Get(ctx, s.cols.Songs, id)
		if err != nil {
			return Song{}, notFound(err)
		}
		return decodeSong(rec)
	})
}

// ListSongs returns songs newest first.
func (s *Service) ListSongs(ctx context.Context, opts ListOptions) ([]Song, error) {
	q := storage.Query{
		OrderBy: []storage.Order{{Field: "createdAt", Desc: true}},
		Limit:   opts.Limit,
	}
	if opts.Genre != "" {
		q.Filters = append(q.Filters, storage.Where("genre", storage.OpEq, opts.Genre))
	}
	if opts.ArtistID != "" {
		q.Filters = append(q.Filters, storage.Where("artistId", storage.OpEq, opts.ArtistID))
	}
	return s.query(ctx, q)
}

// UpdateSong applies the set fields of u and bumps updatedAt.
func (s *Service) UpdateSong(ctx context.Context, id string, u SongUpdate) error {
	if err := s.validate.Struct(u); err != nil {
		return validationError(err)
	}
	patch := u.patch()
	patch["updatedAt"] = storage.NewTimestamp(s.now()).String()

	return s.cache.WriteThrough(id, func() error {
		return notFound(s.store.Update(ctx, s.cols.Songs, id, patch))
	})
}

// DeleteSong removes a song. Transactions that reference it are kept.
func (s *Service) DeleteSong(ctx context.Context, id string) error {
	return s.cache.WriteThrough(id, func() error {
		return notFound(s.store.Delete(ctx, s.cols.Songs, id))
	})
}

// RecordPlay adds one play and seconds of listening time to a song. The
// read and the write are separate store calls, so concurrent plays of the
// same song can lose an increment.
func (s *Service) RecordPlay(ctx context.Context, id string, seconds float64) error {
	return s.cache.WriteThrough(id, func() error {
		rec, err := s.store.Get(ctx, s.cols.Songs, id)
		if err != nil {
			return notFound(err)
		}
		song, err := decodeSong(rec)
		if err != nil {
			return err
		}
		patch := storage.Document{
			"playCount":      song.PlayCount + 1,
			"listeningHours": song.ListeningHours + seconds/3600,
		}
		return notFound(s.store.Update(ctx, s.cols.Songs, id, patch))
	})
}

// SongsForUser returns the songs userID holds a completed transaction
// for, newest first. Songs deleted since purchase are skipped.
func (s *Service) SongsForUser(ctx context.Context, userID string) ([]Song, error) {
	txs, err := s.store.Query(ctx, s.cols.Transactions, storage.Query{
		Filters: []storage.Filter{
			storage.Where("userId", storage.OpEq, userID),
			storage.Where("status", storage.OpEq, "completed"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	seen := make(map[string]bool, len(txs))
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		songID, _ := tx.Data["songId"].(string)
		if songID == "" || seen[songID] {
			continue
		}
		seen[songID] = true
		ids = append(ids, songID)
	}
	if len(ids) == 0 {
		return []Song{}, nil
	}

	return s.query(ctx, storage.Query{
		Filters: []storage.Filter{storage.Where("id", storage.OpIn, ids)},
		OrderBy: []storage.Order{{Field: "createdAt", Desc: true}},
	})
}

// HasPurchased reports whether userID has a completed transaction for
// songID. The answer is advisory and is not held across a purchase.
func (s *Service) HasPurchased(ctx context.Context, userID, songID string) (bool, error) {
	recs, err := s.store.Query(ctx, s.cols.Transactions, storage.Query{
		Filters: []storage.Filter{
			storage.Where("userId", storage.OpEq, userID),
			storage.Where("songId", storage.OpEq, songID),
			storage.Where("status", storage.OpEq, "completed"),
		},
		Limit: 1,
	})
	if err != nil {
		return false, fmt.Errorf("query transactions: %w", err)
	}
	return len(recs) > 0, nil
}

func (s *Service) query(ctx context.Context, q storage.Query) ([]Song, error) {
	recs, err := s.store.Query(ctx, s.cols.Songs, q)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	songs := make([]Song, 0, len(recs))
	for _, rec := range recs {
		song, err := decodeSong(rec)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, nil
}

func decodeSong(rec storage.Record) (Song, error) {
	var song Song
	if err := storage.Decode(rec, &song); err != nil {
		return Song{}, err
	}
	return song, nil
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSongNotFound
	}
	return err
}

func validationError(err error) error {
	if fields := schema.FieldErrors(err); fields != nil {
		return &ValidationError{Fields: fields}
	}
	return err
}
