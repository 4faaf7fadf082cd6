// Package analytics records listening sessions and aggregates purchase and
// playback records into dashboard metrics. Aggregation happens in process
// over records the store already holds.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/musichub/server/internal/catalog"
	"github.com/musichub/server/internal/logger"
	"github.com/musichub/server/internal/metrics"
	"github.com/musichub/server/internal/payments"
	"github.com/musichub/server/internal/schema"
	"github.com/musichub/server/internal/storage"
)

const (
	topSongsLimit   = 5
	topGenresLimit  = 5
	featuredLimit   = 4
	unknownBucket   = "Unknown"
	roleArtist      = "artist"
	dayLayout       = "2006-01-02"
	secondsPerHour  = 3600.0
	completedStatus = string(payments.TransactionCompleted)
)

// Service answers analytics queries.
type Service struct {
	store    storage.RecordStore
	catalog  *catalog.Service
	cols     storage.Collections
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// Option customises a Service.
type Option func(*Service)

// WithCollections overrides the collection names.
func WithCollections(cols storage.Collections) Option {
	return func(s *Service) { s.cols = cols }
}

// WithMetrics records tracked sessions in Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates an analytics service. Song play counters are
// updated through cat.
func NewService(store storage.RecordStore, cat *catalog.Service, opts ...Option) *Service {
	s := &Service{
		store:    store,
		catalog:  cat,
		cols:     storage.DefaultCollections(),
		validate: schema.NewValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackSession stores a listening session and adds one play and the
// session's duration to the song. The song must exist. The counter update
// is a separate read-modify-write; if it fails the session stays stored
// and the error is returned.
func (s *Service) TrackSession(ctx context.Context, session ListeningSession) (string, error) {
	if err := s.validate.Struct(session); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	song, err := s.catalog.GetSong(ctx, session.SongID)
	if err != nil {
		return "", err
	}
	if session.ArtistID == "" {
		session.ArtistID = song.ArtistID
	}

	doc, err := storage.Encode(session)
	if err != nil {
		return "", err
	}
	id, err := s.store.Insert(ctx, s.cols.ListeningSessions, doc)
	if err != nil {
		return "", fmt.Errorf("insert listening session: %w", err)
	}

	if err := s.catalog.RecordPlay(ctx, session.SongID, session.Duration); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).
			Str("session_id", id).
			Str("song_id", session.SongID).
			Msg("listening.play_count_update_failed")
		return id, fmt.Errorf("update play count: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveListeningSession(session.Platform, session.Duration)
	}
	return id, nil
}

// Metrics aggregates completed transactions, songs and users.
func (s *Service) Metrics(ctx context.Context, opts MetricsOptions) (Metrics, error) {
	txs, err := s.completedTransactions(ctx, opts)
	if err != nil {
		return Metrics{}, err
	}
	songs, err := s.catalog.ListSongs(ctx, catalog.ListOptions{ArtistID: opts.ArtistID})
	if err != nil {
		return Metrics{}, err
	}
	users, err := s.store.Query(ctx, s.cols.Users, storage.Query{})
	if err != nil {
		return Metrics{}, fmt.Errorf("query users: %w", err)
	}

	out := Metrics{
		TotalRevenue:              decimal.Zero,
		TotalUsers:                len(users),
		TotalSongs:                len(songs),
		RevenueByDay:              []DayRevenue{},
		PlatformDistribution:      map[string]int{},
		PaymentMethodDistribution: map[string]int{},
	}

	byDay := map[string]decimal.Decimal{}
	revenueBySong := map[string]decimal.Decimal{}
	for _, tx := range txs {
		out.TotalRevenue = out.TotalRevenue.Add(tx.Amount)
		revenueBySong[tx.SongID] = revenueBySong[tx.SongID].Add(tx.Amount)
		if !tx.CreatedAt.IsZero() {
			day := tx.CreatedAt.UTC().Format(dayLayout)
			byDay[day] = byDay[day].Add(tx.Amount)
		}
		out.PlatformDistribution[orUnknown(tx.Metadata.Platform)]++
		out.PaymentMethodDistribution[orUnknown(tx.PaymentDetails.CardBrand)]++
	}
	for day, amount := range byDay {
		out.RevenueByDay = append(out.RevenueByDay, DayRevenue{Date: day, Amount: amount})
	}
	sort.Slice(out.RevenueByDay, func(i, j int) bool {
		return out.RevenueByDay[i].Date < out.RevenueByDay[j].Date
	})

	for _, song := range songs {
		out.TotalListeningTime += song.ListeningHours
	}
	out.TopSongs = topSongs(songs, topSongsLimit)
	out.TopGenres = topGenres(songs, topGenresLimit)

	if opts.ArtistID != "" {
		am := &ArtistMetrics{
			TotalRevenue:        out.TotalRevenue,
			TotalListeningHours: out.TotalListeningTime,
			SongPerformance:     make([]SongPerformance, 0, len(songs)),
		}
		for _, song := range songs {
			am.TotalPlays += song.PlayCount
			am.SongPerformance = append(am.SongPerformance, SongPerformance{
				ID:      song.ID,
				Title:   song.Title,
				Plays:   song.PlayCount,
				Hours:   song.ListeningHours,
				Revenue: revenueBySong[song.ID],
			})
		}
		out.ArtistMetrics = am
	}
	return out, nil
}

// ListeningMetrics summarises every session recorded for songID.
func (s *Service) ListeningMetrics(ctx context.Context, songID string) (ListeningMetrics, error) {
	recs, err := s.store.Query(ctx, s.cols.ListeningSessions, storage.Query{
		Filters: []storage.Filter{storage.Where("songId", storage.OpEq, songID)},
	})
	if err != nil {
		return ListeningMetrics{}, fmt.Errorf("query listening sessions: %w", err)
	}

	var (
		out       ListeningMetrics
		seconds   float64
		completed int
		listeners = map[string]struct{}{}
	)
	for _, rec := range recs {
		var session ListeningSession
		if err := storage.Decode(rec, &session); err != nil {
			return ListeningMetrics{}, err
		}
		hours := session.Duration / secondsPerHour
		seconds += session.Duration
		out.TotalHours += hours
		if !session.StartTime.IsZero() {
			start := session.StartTime.UTC()
			out.HourlyDistribution[start.Hour()] += hours
			out.DailyDistribution[start.Weekday()] += hours
		}
		if session.Completed {
			completed++
		}
		listeners[session.UserID] = struct{}{}
	}

	if n := len(recs); n > 0 {
		out.AverageSessionDuration = seconds / float64(n)
		out.CompletionRate = float64(completed) / float64(n)
	}
	out.UniqueListeners = len(listeners)
	return out, nil
}

// FeaturedArtists returns up to four artists with at least one song,
// ordered by total plays across their songs.
func (s *Service) FeaturedArtists(ctx context.Context) ([]FeaturedArtist, error) {
	recs, err := s.store.Query(ctx, s.cols.Users, storage.Query{
		Filters: []storage.Filter{storage.Where("role", storage.OpEq, roleArtist)},
	})
	if err != nil {
		return nil, fmt.Errorf("query artists: %w", err)
	}

	featured := make([]FeaturedArtist, 0, len(recs))
	for _, rec := range recs {
		var artist Artist
		if err := storage.Decode(rec, &artist); err != nil {
			return nil, err
		}
		songs, err := s.catalog.ListSongs(ctx, catalog.ListOptions{ArtistID: artist.ID})
		if err != nil {
			return nil, err
		}
		if len(songs) == 0 {
			continue
		}

		fa := FeaturedArtist{Artist: artist}
		top := songs[0]
		for _, song := range songs {
			fa.TotalPlays += song.PlayCount
			if song.PlayCount > top.PlayCount {
				top = song
			}
		}
		fa.TopSong = summarize(top)
		featured = append(featured, fa)
	}

	sort.SliceStable(featured, func(i, j int) bool {
		return featured[i].TotalPlays > featured[j].TotalPlays
	})
	if len(featured) > featuredLimit {
		featured = featured[:featuredLimit]
	}
	return featured, nil
}

func (s *Service) completedTransactions(ctx context.Context, opts MetricsOptions) ([]payments.Transaction, error) {
	q := storage.Query{
		Filters: []storage.Filter{storage.Where("status", storage.OpEq, completedStatus)},
		OrderBy: []storage.Order{{Field: "createdAt"}},
	}
	if opts.ArtistID != "" {
		q.Filters = append(q.Filters, storage.Where("metadata.artistId", storage.OpEq, opts.ArtistID))
	}
	if !opts.Since.IsZero() {
		q.Filters = append(q.Filters, storage.Where("createdAt", storage.OpGte, storage.NewTimestamp(opts.Since).String()))
	}

	recs, err := s.store.Query(ctx, s.cols.Transactions, q)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	txs := make([]payments.Transaction, 0, len(recs))
	for _, rec := range recs {
		var tx payments.Transaction
		if err := storage.Decode(rec, &tx); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func topSongs(songs []catalog.Song, limit int) []SongSummary {
	ranked := make([]catalog.Song, len(songs))
	copy(ranked, songs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PlayCount > ranked[j].PlayCount
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]SongSummary, 0, len(ranked))
	for _, song := range ranked {
		out = append(out, summarize(song))
	}
	return out
}

func topGenres(songs []catalog.Song, limit int) []GenreCount {
	counts := map[string]int{}
	for _, song := range songs {
		counts[orUnknown(song.Genre)]++
	}
	out := make([]GenreCount, 0, len(counts))
	for genre, n := range counts {
		out = append(out, GenreCount{Genre: genre, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func summarize(song catalog.Song) SongSummary {
	return SongSummary{
		ID:     song.ID,
		Title:  song.Title,
		Artist: song.Artist,
		Plays:  song.PlayCount,
		Hours:  song.ListeningHours,
	}
}

func orUnknown(v string) string {
	if v == "" {
		return unknownBucket
	}
	return v
}
