package posts

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by ImportYAML.
type seedFile struct {
	Posts []seedPost `yaml:"posts"`
}

type seedPost struct {
	ID        int64     `yaml:"id"`
	URL       string    `yaml:"url"`
	Title     string    `yaml:"title"`
	Excerpt   string    `yaml:"excerpt"`
	Content   string    `yaml:"content"`
	Thumbnail string    `yaml:"thumbnail"`
	Status    string    `yaml:"status"`
	Type      string    `yaml:"type"`
	Modified  time.Time `yaml:"modified"`
}

// ImportYAML reads posts from r and upserts them in one transaction. It
// returns the number of posts imported; on error nothing is imported.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to decode posts YAML: %w", err)
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, sp := range seed.Posts {
			p := Post{
				ID:           sp.ID,
				URL:          sp.URL,
				Title:        sp.Title,
				Excerpt:      sp.Excerpt,
				Content:      sp.Content,
				ThumbnailURL: sp.Thumbnail,
				Status:       sp.Status,
				Type:         sp.Type,
				ModifiedAt:   sp.Modified,
			}
			if err := upsert(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("Imported posts", "count", len(seed.Posts))
	return len(seed.Posts), nil
}
