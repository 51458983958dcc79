package api

import (
	"github.com/oshokin/trackgrab/internal/catalog"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/extractor"
)

func extractorQuery(track *catalog.Track) extractor.SearchQuery {
	return extractor.SearchQuery{Artists: track.Artists, Title: track.Title}
}

func extractorOptions(cfg *config.Config) extractor.SearchOptions {
	return extractor.SearchOptions{
		MaxPages:  cfg.YoutubeSearchMaxPages,
		PageSize:  cfg.YoutubeSearchPageSize,
		StopScore: cfg.YoutubeSearchPageStopThreshold,
		Timeout:   cfg.ParsedYoutubeSearchTimeout,
	}
}
