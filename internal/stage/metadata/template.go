// Package metadata generates titles, descriptions and tags for compiled
// ranking videos.
package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

// CategoryEntertainment is the YouTube category id used for every upload.
const CategoryEntertainment = "24"

// Template builds metadata from fixed text patterns.
type Template struct{}

func (Template) Generate(_ context.Context, req pipeline.MetadataRequest) (pipeline.Metadata, error) {
	return Default(req), nil
}

// Default returns the template metadata for req without calling anything.
func Default(req pipeline.MetadataRequest) pipeline.Metadata {
	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Top %d %s You Need to See!", req.Count, req.Niche)
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf(
			"Check out these amazing %s! We've ranked the top %d based on quality, popularity, and entertainment value. "+
				"Which one is your favorite? Let us know in the comments!\n\n#%s #Top%d #Ranking",
			req.Niche, req.Count, hashtag(req.Niche), req.Count)
	}
	return pipeline.Metadata{
		Title:       title,
		Description: description,
		Tags:        []string{req.Niche, fmt.Sprintf("top%d", req.Count), "ranking", "compilation"},
		CategoryID:  CategoryEntertainment,
	}
}

func hashtag(s string) string {
	return strings.Join(strings.Fields(s), "")
}
