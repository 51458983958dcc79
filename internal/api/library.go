package api

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/oshokin/trackgrab/internal/catalog"
)

func (s *Server) handleListLibraryFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListLibraryFiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetLibraryFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	file, err := s.store.GetLibraryFile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleDeleteLibraryFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.store.DeleteLibraryFile(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadLibraryFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.libraryFileFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filenameOf(file.Filepath)))
	http.ServeFile(w, r, file.Filepath)
}

// handleRevealLibraryFile reports the on-disk location of a library file; it
// does not open a file manager, since the API has no notion of the caller's
// desktop environment.
func (s *Server) handleRevealLibraryFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.libraryFileFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"filepath": file.Filepath})
}

func (s *Server) libraryFileFromPath(r *http.Request) (*catalog.LibraryFile, error) {
	id, err := pathInt64(r, "id")
	if err != nil {
		return nil, err
	}

	return s.store.GetLibraryFile(r.Context(), id)
}

// handleStreamLibraryFile serves a library file with Range support so audio
// players can seek without downloading the whole file up front.
func (s *Server) handleStreamLibraryFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.libraryFileFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := os.Open(file.Filepath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := fmt.Sprintf(`"%x"`, sha256.Sum256([]byte(fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()))))

	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(file.Container))

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)

		return
	}

	start, end, err := parseRange(rangeHeader, info.Size())
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size()))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)

		return
	}

	length := end - start + 1
	section := io.NewSectionReader(f, start, length)

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size()))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	io.Copy(w, section)
}

// parseRange parses a single-range "bytes=start-end" header, per RFC 7233.
// Multi-range requests are not supported; only their first range is parsed
// and served.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}

	spec = strings.Split(spec, ",")[0]

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed range")
	}

	switch {
	case parts[0] == "" && parts[1] != "":
		suffixLen, convErr := strconv.ParseInt(parts[1], 10, 64)
		if convErr != nil {
			return 0, 0, convErr
		}

		if suffixLen > size {
			suffixLen = size
		}

		return size - suffixLen, size - 1, nil
	case parts[1] == "":
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}

		return start, size - 1, nil
	default:
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}

		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}

	if start > end || end >= size {
		end = size - 1
	}

	if start < 0 || start >= size {
		return 0, 0, fmt.Errorf("range start out of bounds")
	}

	return start, end, nil
}

func contentTypeFor(container string) string {
	switch strings.ToLower(container) {
	case "flac":
		return "audio/flac"
	case "mp3":
		return "audio/mpeg"
	case "m4a", "mp4":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

func filenameOf(path string) string {
	idx := strings.LastIndexAny(path, "/\\")
	if idx < 0 {
		return path
	}

	return path[idx+1:]
}

type libraryRescanResult struct {
	ScannedFiles int `json:"scanned_files"`
	Removed      int `json:"removed"`
}

// handleScanLibrary walks the library directory and removes LibraryFile rows
// whose backing file no longer exists on disk.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListLibraryFiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := libraryRescanResult{ScannedFiles: len(files)}

	for _, f := range files {
		if _, statErr := os.Stat(f.Filepath); statErr != nil {
			if delErr := s.store.DeleteLibraryFile(r.Context(), f.ID); delErr == nil {
				result.Removed++
			}
		}
	}

	writeJSON(w, http.StatusOK, result)
}

type libraryReindexResult struct {
	TracksScanned int `json:"tracks_scanned"`
	FilesLinked   int `json:"files_linked"`
}

// handleReindexFromTracks walks every track's already-known LibraryFile and
// refreshes its on-disk size and mtime, so stale rows left by an out-of-band
// file move or re-encode are corrected without a full rescan.
func (s *Server) handleReindexFromTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.store.ListTracks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := libraryReindexResult{TracksScanned: len(tracks)}

	for _, t := range tracks {
		file, getErr := s.store.GetLibraryFileForTrack(r.Context(), t.ID)
		if getErr != nil || file == nil {
			continue
		}

		info, statErr := os.Stat(file.Filepath)
		if statErr != nil {
			continue
		}

		size := info.Size()
		mtime := info.ModTime()
		file.FileSize = &size
		file.FileMtime = &mtime

		if _, upsertErr := s.store.UpsertLibraryFile(r.Context(), file); upsertErr == nil {
			result.FilesLinked++
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// handleResyncLibrary runs the same pass as handleScanLibrary: it drops rows
// whose file vanished. It does not refresh size or mtime of rows still on
// disk; handleReindexFromTracks does that.
func (s *Server) handleResyncLibrary(w http.ResponseWriter, r *http.Request) {
	s.handleScanLibrary(w, r)
}
