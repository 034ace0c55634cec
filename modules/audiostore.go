package modules

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bogem/id3v2"
	"github.com/mewkiz/flac"

	"github.com/spacex-3/music-tune/logger"
	"github.com/spacex-3/music-tune/models"
	"github.com/spacex-3/music-tune/utilities"
)

// AudioStore is the local tier of the cache: downloaded audio on disk,
// bounded by a max total size with least-recently-accessed eviction.
// Writes go to a temp file and are published with an atomic rename, so a
// partially downloaded file is never visible to readers. Size accounting
// lives in memory and is rebuilt from the directory on startup; last access
// is mirrored to file mtimes so the eviction order survives restarts.
type AudioStore struct {
	dir      string
	maxBytes int64

	mutex      sync.Mutex
	files      map[string]*audioFile
	totalBytes int64
	now        func() time.Time
}

type audioFile struct {
	size       int64
	lastAccess time.Time
}

func NewAudioStore(dir string, maxBytes int64) (*AudioStore, error) {
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return nil, err
	}

	store := &AudioStore{
		dir:      dir,
		maxBytes: maxBytes,
		files:    map[string]*audioFile{},
		now:      time.Now,
	}

	err = store.rescan()
	if err != nil {
		return nil, err
	}

	return store, nil
}

func (s *AudioStore) rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.files = map[string]*audioFile{}
	s.totalBytes = 0

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		s.files[entry.Name()] = &audioFile{
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		s.totalBytes += info.Size()
	}

	return nil
}

// fileName derives the on-disk name for a track
// ("netease_12345_flac.flac").
func (s *AudioStore) fileName(ref models.TrackRef) string {
	return utilities.SanitizeFileComponent(ref.SongID()) + "_" + string(ref.Quality) + "." + utilities.QualitySuffix(ref.Quality)
}

func (s *AudioStore) Has(ref models.TrackRef) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.files[s.fileName(ref)]
	return ok
}

// Path returns the local file path for a cached track and bumps its access
// time.
func (s *AudioStore) Path(ref models.TrackRef) (string, bool) {
	name := s.fileName(ref)

	s.mutex.Lock()
	record, ok := s.files[name]
	if ok {
		record.lastAccess = s.now()
	}
	s.mutex.Unlock()

	if !ok {
		return "", false
	}

	fullPath := filepath.Join(s.dir, name)
	_ = os.Chtimes(fullPath, s.now(), s.now())
	return fullPath, true
}

// Open opens a cached track for reading, bumping its access time. A record
// whose file has vanished underneath us is dropped from the index and
// reported as absent rather than corrupting the size accounting.
func (s *AudioStore) Open(ref models.TrackRef) (*os.File, error) {
	fullPath, ok := s.Path(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s not in audio cache", ErrNotFound, ref.Key())
	}

	file, err := os.Open(fullPath)
	if err != nil {
		s.drop(s.fileName(ref))
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, ref.Key(), err)
	}

	return file, nil
}

func (s *AudioStore) drop(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if record, ok := s.files[name]; ok {
		s.totalBytes -= record.size
		delete(s.files, name)
	}
}

// Write stores downloaded audio. The payload is verified (FLAC) or tagged
// (MP3, when metadata is known) while still in the temp file; only a fully
// written, valid file is renamed into place. On any failure the temp file
// is removed and the index is untouched.
func (s *AudioStore) Write(ref models.TrackRef, reader io.Reader, metadata *models.MetadataEntry) (int64, error) {
	name := s.fileName(ref)
	fullPath := filepath.Join(s.dir, name)
	tempPath := fullPath + ".tmp"

	tempFile, err := os.Create(tempPath)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(tempFile, reader)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return 0, err
	}

	if utilities.QualitySuffix(ref.Quality) == "flac" {
		if err := validateFlac(tempPath); err != nil {
			os.Remove(tempPath)
			return 0, err
		}
	} else if metadata != nil && (metadata.Title != "" || metadata.Artist != "") {
		tagMP3(tempPath, metadata)
	}

	err = os.Rename(tempPath, fullPath)
	if err != nil {
		os.Remove(tempPath)
		return 0, err
	}

	s.mutex.Lock()
	if previous, ok := s.files[name]; ok {
		s.totalBytes -= previous.size
	}
	s.files[name] = &audioFile{
		size:       written,
		lastAccess: s.now(),
	}
	s.totalBytes += written
	s.mutex.Unlock()

	s.EvictToFit()

	return written, nil
}

func validateFlac(path string) error {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("downloaded data is not valid FLAC: %w", err)
	}
	stream.Close()
	return nil
}

func tagMP3(path string, metadata *models.MetadataEntry) {
	tagFile, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		logger.Log.Debug("skipping ID3 tagging. error: " + err.Error())
		return
	}
	defer tagFile.Close()

	if metadata.Title != "" {
		tagFile.SetTitle(metadata.Title)
	}
	if metadata.Artist != "" {
		tagFile.SetArtist(metadata.Artist)
	}
	if metadata.Album != "" {
		tagFile.SetAlbum(metadata.Album)
	}

	if err := tagFile.Save(); err != nil {
		logger.Log.Debug("failed to write ID3 tags. error: " + err.Error())
	}
}

// EvictToFit removes least-recently-accessed files until the total size is
// within the configured bound. Ties on access time break by ascending file
// name so eviction order is deterministic.
func (s *AudioStore) EvictToFit() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.totalBytes <= s.maxBytes {
		return
	}

	logger.Log.Info(fmt.Sprintf("[CACHE] size %.2f GB exceeds limit %.2f GB, cleaning up...",
		float64(s.totalBytes)/1024/1024/1024, float64(s.maxBytes)/1024/1024/1024))

	evicted := 0
	for s.totalBytes > s.maxBytes && len(s.files) > 0 {
		oldestName := ""
		var oldest *audioFile
		for name, record := range s.files {
			if oldest == nil ||
				record.lastAccess.Before(oldest.lastAccess) ||
				(record.lastAccess.Equal(oldest.lastAccess) && name < oldestName) {
				oldestName = name
				oldest = record
			}
		}

		if err := os.Remove(filepath.Join(s.dir, oldestName)); err != nil && !os.IsNotExist(err) {
			logger.Log.Error("failed to evict " + oldestName + ". error: " + err.Error())
		}
		s.totalBytes -= oldest.size
		delete(s.files, oldestName)
		evicted++
	}

	logger.Log.Info(fmt.Sprintf("[CACHE] evicted %d files, new size: %.2f GB",
		evicted, float64(s.totalBytes)/1024/1024/1024))
}

func (s *AudioStore) TotalBytes() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.totalBytes
}

func (s *AudioStore) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.files)
}

// Clear wipes the local audio cache.
func (s *AudioStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, record := range s.files {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
		s.totalBytes -= record.size
		delete(s.files, name)
	}

	return nil
}
