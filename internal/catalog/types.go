package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/musichub/server/internal/storage"
)

// ErrSongNotFound is returned when a song ID does not resolve.
var ErrSongNotFound = errors.New("song not found")

// Song is a catalog entry. Media is referenced by URL.
type Song struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Artist         string            `json:"artist"`
	ArtistID       string            `json:"artistId"`
	Album          string            `json:"album,omitempty"`
	Description    string            `json:"description"`
	CoverURL       string            `json:"coverUrl"`
	AudioURL       string            `json:"audioUrl"`
	Price          decimal.Decimal   `json:"price"`
	IsPremium      bool              `json:"isPremium"`
	Duration       float64           `json:"duration"`
	Genre          string            `json:"genre,omitempty"`
	PlayCount      int64             `json:"playCount"`
	ListeningHours float64           `json:"listeningHours"`
	CreatedAt      storage.Timestamp `json:"createdAt"`
	UpdatedAt      storage.Timestamp `json:"updatedAt"`
}

// SongInput is the payload for a new song.
type SongInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Artist      string          `json:"artist" validate:"required,max=200"`
	ArtistID    string          `json:"artistId" validate:"required"`
	Album       string          `json:"album,omitempty" validate:"max=200"`
	Description string          `json:"description" validate:"max=5000"`
	CoverURL    string          `json:"coverUrl" validate:"required,url"`
	AudioURL    string          `json:"audioUrl" validate:"required,url"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	IsPremium   bool            `json:"isPremium"`
	Duration    float64         `json:"duration" validate:"gte=0"`
	Genre       string          `json:"genre,omitempty" validate:"max=100"`
}

// SongUpdate is a partial update; nil fields are left alone.
type SongUpdate struct {
	Title       *string          `json:"title,omitempty" validate:"omitnil,min=1,max=200"`
	Artist      *string          `json:"artist,omitempty" validate:"omitnil,min=1,max=200"`
	Album       *string          `json:"album,omitempty" validate:"omitnil,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitnil,max=5000"`
	CoverURL    *string          `json:"coverUrl,omitempty" validate:"omitnil,url"`
	AudioURL    *string          `json:"audioUrl,omitempty" validate:"omitnil,url"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitnil,gte=0"`
	IsPremium   *bool            `json:"isPremium,omitempty"`
	Duration    *float64         `json:"duration,omitempty" validate:"omitnil,gte=0"`
	Genre       *string          `json:"genre,omitempty" validate:"omitnil,max=100"`
}

// patch renders the set fields as a top-level merge document.
func (u SongUpdate) patch() storage.Document {
	doc := storage.Document{}
	setString := func(key string, v *string) {
		if v != nil {
			doc[key] = *v
		}
	}
	setString("title", u.Title)
	setString("artist", u.Artist)
	setString("album", u.Album)
	setString("description", u.Description)
	setString("coverUrl", u.CoverURL)
	setString("audioUrl", u.AudioURL)
	setString("genre", u.Genre)
	if u.Price != nil {
		doc["price"] = u.Price.String()
	}
	if u.IsPremium != nil {
		doc["isPremium"] = *u.IsPremium
	}
	if u.Duration != nil {
		doc["duration"] = *u.Duration
	}
	return doc
}

// ListOptions narrows ListSongs. Empty fields do not filter; a zero Limit
// returns every match.
type ListOptions struct {
	Genre    string
	ArtistID string
	Limit    int
}

// ValidationError lists the offending fields of a rejected input, keyed
// by json name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (%s)", k, e.Fields[k]))
	}
	return "invalid song: " + strings.Join(parts, ", ")
}
