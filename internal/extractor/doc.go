// Package extractor abstracts search and download against the external
// video platform used to source audio. A real implementation shells out to
// yt-dlp/ffmpeg; a fixture implementation backs automated tests and the
// YOUTUBE_SEARCH_FAKE/DOWNLOAD_FAKE config toggles.
package extractor
