package analytics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/musichub/server/internal/storage"
)

// ErrInvalidSession is returned for listening sessions that fail validation.
var ErrInvalidSession = errors.New("invalid listening session")

// ListeningSession is one playback of a song by a user.
type ListeningSession struct {
	ID         string             `json:"id,omitempty"`
	UserID     string             `json:"userId" validate:"required"`
	SongID     string             `json:"songId" validate:"required"`
	ArtistID   string             `json:"artistId"`
	StartTime  storage.Timestamp  `json:"startTime" validate:"required"`
	EndTime    *storage.Timestamp `json:"endTime"`
	Duration   float64            `json:"duration" validate:"gte=0"` // seconds
	Completed  bool               `json:"completed"`
	Platform   string             `json:"platform"`
	DeviceInfo string             `json:"deviceInfo"`
}

// MetricsOptions scopes Metrics. A set ArtistID restricts songs and
// revenue to that artist and adds ArtistMetrics; a non-zero Since drops
// older transactions.
type MetricsOptions struct {
	ArtistID string
	Since    time.Time
}

// Metrics is the dashboard summary.
type Metrics struct {
	TotalRevenue              decimal.Decimal `json:"totalRevenue"`
	TotalUsers                int             `json:"totalUsers"`
	TotalSongs                int             `json:"totalSongs"`
	TotalListeningTime        float64         `json:"totalListeningTime"` // hours
	RevenueByDay              []DayRevenue    `json:"revenueByDay"`
	TopSongs                  []SongSummary   `json:"topSongs"`
	TopGenres                 []GenreCount    `json:"topGenres"`
	PlatformDistribution      map[string]int  `json:"platformDistribution"`
	PaymentMethodDistribution map[string]int  `json:"paymentMethodDistribution"`
	ArtistMetrics             *ArtistMetrics  `json:"artistMetrics,omitempty"`
}

// DayRevenue is revenue for one UTC day, YYYY-MM-DD.
type DayRevenue struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// SongSummary is a song ranked by plays.
type SongSummary struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Plays  int64   `json:"plays"`
	Hours  float64 `json:"hours"`
}

// GenreCount counts songs in one genre.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// ArtistMetrics is the per-artist breakdown.
type ArtistMetrics struct {
	TotalRevenue        decimal.Decimal   `json:"totalRevenue"`
	TotalPlays          int64             `json:"totalPlays"`
	TotalListeningHours float64           `json:"totalListeningHours"`
	SongPerformance     []SongPerformance `json:"songPerformance"`
}

// SongPerformance is one song's plays, hours and revenue.
type SongPerformance struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Plays   int64           `json:"plays"`
	Hours   float64         `json:"hours"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ListeningMetrics summarises sessions of one song. Distributions hold
// listening hours bucketed by the UTC hour (0-23) and weekday (Sunday=0)
// the session started in.
type ListeningMetrics struct {
	TotalHours             float64     `json:"totalHours"`
	HourlyDistribution     [24]float64 `json:"hourlyDistribution"`
	DailyDistribution      [7]float64  `json:"dailyDistribution"`
	AverageSessionDuration float64     `json:"averageSessionDuration"` // seconds
	CompletionRate         float64     `json:"completionRate"`
	UniqueListeners        int         `json:"uniqueListeners"`
}

// Artist is the subset of a user record shown for featured artists.
type Artist struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	ArtistProfile *ArtistProfile `json:"artistProfile,omitempty"`
}

// ArtistProfile is optional artist-facing detail.
type ArtistProfile struct {
	Bio         string            `json:"bio"`
	Genres      []string          `json:"genres"`
	SocialLinks map[string]string `json:"socialLinks,omitempty"`
}

// FeaturedArtist pairs an artist with their most played song.
type FeaturedArtist struct {
	Artist
	TopSong    SongSummary `json:"topSong"`
	TotalPlays int64       `json:"totalPlays"`
}
