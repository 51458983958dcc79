package tagger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
	"github.com/oshokin/id3v2/v2"

	"github.com/oshokin/trackgrab/internal/constants"
	"github.com/oshokin/trackgrab/internal/logger"
)

// spotifyCoverHostPattern is the host substring identifying a Spotify-origin
// cover URL, which takes priority over any extractor-provided thumbnail
// (spec §4.5's cover selection rule).
const spotifyCoverHostPattern = "i.scdn.co/"

// ErrEmptyTrackPath indicates that the track file path is empty.
var ErrEmptyTrackPath = errors.New("tagger: track path cannot be empty")

// ErrUnsupportedContainer indicates a file extension the tagger has no
// writer for.
var ErrUnsupportedContainer = errors.New("tagger: unsupported audio container")

// TagProcessor writes canonical metadata into an acquired audio file.
//
//go:generate go run go.uber.org/mock/mockgen -source=tag_processor.go -destination=mocks/tag_processor_mock.go -package=mocks
type TagProcessor interface {
	WriteTags(ctx context.Context, req *WriteTagsRequest) (*WriteTagsResult, error)
}

// WriteTagsRequest carries the canonical track metadata to stamp onto a
// just-acquired audio file.
type WriteTagsRequest struct {
	TrackPath         string
	ExtractorCoverPath string
	SpotifyCoverURL   string
	Artist            string
	Title             string
	Album             string
	Genre             string
	BPM               *float64
	ReleaseDate       string // YYYY-MM-DD
}

// WriteTagsResult reports the outcome of a WriteTags call.
type WriteTagsResult struct {
	Checksum string
}

type imageMetadata struct {
	data     []byte
	mimeType string
}

// CoverFetcher downloads a remote cover image, used for the
// Spotify-cover-priority rule when the track's cover URL is Spotify-origin.
type CoverFetcher func(ctx context.Context, url string) ([]byte, string, error)

type processor struct {
	fetchCover CoverFetcher
}

// NewTagProcessor builds a TagProcessor. fetchCover may be nil if Spotify
// cover URLs are never used (e.g. in a fully offline test harness).
func NewTagProcessor(fetchCover CoverFetcher) TagProcessor {
	return &processor{fetchCover: fetchCover}
}

func (p *processor) WriteTags(ctx context.Context, req *WriteTagsRequest) (*WriteTagsResult, error) {
	if req.TrackPath == "" {
		return nil, ErrEmptyTrackPath
	}

	image, err := p.resolveCover(ctx, req)
	if err != nil {
		logger.Warnf(ctx, "failed to resolve cover for %q: %v", req.TrackPath, err)
	}

	switch filepath.Ext(req.TrackPath) {
	case constants.ExtensionFLAC:
		if err := writeFLACTags(ctx, req, image); err != nil {
			return nil, err
		}
	case constants.ExtensionM4A, constants.ExtensionMP4:
		if err := writeMP4Tags(req, image); err != nil {
			return nil, err
		}
	case constants.ExtensionMP3:
		if err := writeMP3Tags(req, image); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, filepath.Ext(req.TrackPath))
	}

	checksum, err := recomputeChecksum(req.TrackPath)
	if err != nil {
		return nil, err
	}

	return &WriteTagsResult{Checksum: checksum}, nil
}

// resolveCover implements spec §4.5's priority rule: a Spotify-origin cover
// URL wins and disables the extractor-provided thumbnail; otherwise the
// extractor thumbnail is used; otherwise no cover is embedded.
func (p *processor) resolveCover(ctx context.Context, req *WriteTagsRequest) (*imageMetadata, error) {
	if isSpotifyCoverURL(req.SpotifyCoverURL) && p.fetchCover != nil {
		data, mimeType, err := p.fetchCover(ctx, req.SpotifyCoverURL)
		if err != nil {
			return nil, err
		}

		return &imageMetadata{data: data, mimeType: mimeType}, nil
	}

	if req.ExtractorCoverPath == "" {
		return nil, nil //nolint:nilnil // no cover is a valid, common outcome.
	}

	data, err := os.ReadFile(filepath.Clean(req.ExtractorCoverPath))
	if err != nil {
		return nil, err
	}

	return &imageMetadata{data: data, mimeType: mime.TypeByExtension(filepath.Ext(req.ExtractorCoverPath))}, nil
}

func isSpotifyCoverURL(url string) bool {
	return url != "" && containsSubstring(url, spotifyCoverHostPattern)
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}

	return false
}

func recomputeChecksum(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ---- FLAC ----

func writeFLACTags(ctx context.Context, req *WriteTagsRequest, image *imageMetadata) error {
	f, err := flac.ParseFile(filepath.Clean(req.TrackPath))
	if err != nil {
		return err
	}

	// Drop all source-derived metadata blocks first (spec §4.5), keeping
	// only the STREAMINFO block the container needs to stay valid.
	var keep []*flac.MetaDataBlock

	for _, meta := range f.Meta {
		if meta.Type == flac.StreamInfo {
			keep = append(keep, meta)
		}
	}

	f.Meta = keep

	tag := flacvorbis.New()

	for k, v := range flacTagMap(req) {
		if v == "" {
			continue
		}

		if err := tag.Add(k, v); err != nil {
			return err
		}
	}

	tagMeta := tag.Marshal()
	f.Meta = append(f.Meta, &tagMeta)

	if image != nil {
		embedFLACCover(ctx, f, image)
	}

	return f.Save(req.TrackPath)
}

func flacTagMap(req *WriteTagsRequest) map[string]string {
	tags := map[string]string{
		"ARTIST": req.Artist,
		"TITLE":  req.Title,
		"ALBUM":  req.Album,
		"GENRE":  req.Genre,
		"DATE":   req.ReleaseDate,
		"YEAR":   releaseYear(req.ReleaseDate),
	}

	if req.BPM != nil {
		tags["BPM"] = formatBPM(*req.BPM)
	}

	return tags
}

func embedFLACCover(ctx context.Context, f *flac.File, image *imageMetadata) {
	picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "", image.data, image.mimeType)
	if err != nil {
		logger.Errorf(ctx, "failed to embed FLAC cover: %v", err)
		return
	}

	pictureMeta := picture.Marshal()
	f.Meta = append(f.Meta, &pictureMeta)
}

// ---- MP3 ----

func writeMP3Tags(req *WriteTagsRequest, image *imageMetadata) error {
	//nolint:exhaustruct // ParseFrames intentionally omitted; Parse:false drops all source frames.
	tag, err := id3v2.Open(req.TrackPath, id3v2.Options{Parse: false})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetArtist(req.Artist)
	tag.SetTitle(req.Title)
	tag.SetAlbum(req.Album)
	tag.SetGenre(req.Genre)
	tag.SetYear(releaseYear(req.ReleaseDate))

	if req.ReleaseDate != "" {
		tag.AddTextFrame(tag.CommonID("Content group description"), tag.DefaultEncoding(), req.ReleaseDate)
		tag.AddTextFrame(tag.CommonID("Recording time"), tag.DefaultEncoding(), req.ReleaseDate)
	}

	if req.BPM != nil {
		tag.AddTextFrame(tag.CommonID("BPM"), tag.DefaultEncoding(), formatBPM(*req.BPM))
	}

	if image != nil {
		//nolint:exhaustruct // Description field intentionally empty for cover images.
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    image.mimeType,
			PictureType: id3v2.PTFrontCover,
			Picture:     image.data,
		})
	}

	return tag.Save()
}
