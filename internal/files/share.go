package files

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrShareNotFound = errors.New("share not found")
	ErrShareExists   = errors.New("share already exists")
)

// ShareRecord는 공개 공유 한 건입니다. ShortlinkID 0은 단축 링크 없음입니다.
type ShareRecord struct {
	Hash        string    `json:"hash"`
	Owner       int64     `json:"owner"`
	Path        string    `json:"path"`
	ShortlinkID int64     `json:"shortlink_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type ShareStorer interface {
	GetByOwnerPath(ctx context.Context, owner int64, path string) (*ShareRecord, error)
	GetByHash(ctx context.Context, hash string) (*ShareRecord, error)
	Create(ctx context.Context, record *ShareRecord) error
	Delete(ctx context.Context, hashes ...string) error
	ListByOwner(ctx context.Context, owner int64) ([]*ShareRecord, error)
	// ListByPrefix는 path가 prefix로 시작하는 레코드를 반환합니다
	ListByPrefix(ctx context.Context, owner int64, prefix string) ([]*ShareRecord, error)
	UpdatePath(ctx context.Context, owner int64, oldPath, newPath string) error
	RewritePrefix(ctx context.Context, owner int64, oldPrefix, newPrefix string) (int64, error)
	DeleteByOwner(ctx context.Context, owner int64) error
}

// ShortLink는 외부 단축 서비스가 돌려준 링크 정보입니다
type ShortLink struct {
	ID      int64  `json:"id"`
	URL     string `json:"url"`
	LongURL string `json:"long_url,omitempty"`
	Hits    int64  `json:"hits,omitempty"`
}

type Shortener interface {
	Shorten(ctx context.Context, longURL string) (*ShortLink, error)
	Delete(ctx context.Context, id int64) error
	Lookup(ctx context.Context, id int64) (*ShortLink, error)
}

// ShareRegistry는 (owner, path) → 공개 해시 매핑을 파일 이동/삭제와 일관되게 유지합니다
type ShareRegistry struct {
	store     ShareStorer
	shortener Shortener
	settings  SettingsFunc
}

func NewShareRegistry(store ShareStorer, shortener Shortener, settings SettingsFunc) *ShareRegistry {
	return &ShareRegistry{store: store, shortener: shortener, settings: settings}
}

// PublicURL은 공개 해시로 접근하는 URL입니다
func (r *ShareRegistry) PublicURL(hash string) string {
	base := strings.TrimSuffix(r.settings().PublicBaseURL, "/")
	return base + "/public-file/" + hash
}

func (r *ShareRegistry) Get(ctx context.Context, owner int64, cleanPath string) (*ShareRecord, error) {
	record, err := r.store.GetByOwnerPath(ctx, owner, cleanPath)
	if err != nil {
		if errors.Is(err, ErrShareNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *ShareRegistry) Lookup(ctx context.Context, hash string) (*ShareRecord, error) {
	return r.store.GetByHash(ctx, hash)
}

// Share는 abs 파일을 공개합니다. 같은 (owner, path) 공유가 이미 있으면 그것을 그대로 반환합니다.
func (r *ShareRegistry) Share(ctx context.Context, owner int64, cleanPath, abs string) (*ShareRecord, error) {
	if existing, err := r.Get(ctx, owner, cleanPath); err != nil {
		return nil, errIO(err)
	} else if existing != nil {
		return existing, nil
	}

	contentHash, err := hashFile(abs)
	if err != nil {
		return nil, errIO(err)
	}
	hash, err := newPublicHash(owner, contentHash, cleanPath)
	if err != nil {
		return nil, errIO(err)
	}

	record := &ShareRecord{
		Hash:        hash,
		Owner:       owner,
		Path:        cleanPath,
		ShortlinkID: r.shorten(ctx, hash),
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.store.Create(ctx, record); err != nil {
		r.deleteShortlink(ctx, record.ShortlinkID)
		if errors.Is(err, ErrShareExists) {
			// 동시에 들어온 같은 요청이 먼저 기록한 경우
			if existing, getErr := r.Get(ctx, owner, cleanPath); getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, errIO(err)
	}
	return record, nil
}

// Unshare는 공유를 해제하고 해제된 레코드를 반환합니다
func (r *ShareRegistry) Unshare(ctx context.Context, owner int64, cleanPath string) (*ShareRecord, error) {
	record, err := r.Get(ctx, owner, cleanPath)
	if err != nil {
		return nil, errIO(err)
	}
	if record == nil {
		return nil, newError(KindNotFound, msgNotShared, nil).with("path", cleanPath)
	}
	if err := r.store.Delete(ctx, record.Hash); err != nil {
		return nil, errIO(err)
	}
	r.deleteShortlink(ctx, record.ShortlinkID)
	return record, nil
}

// RewriteOnMove는 이름 변경/이동된 경로를 따라 공유 경로를 갱신합니다. 해시는 유지됩니다.
func (r *ShareRegistry) RewriteOnMove(ctx context.Context, owner int64, oldPath, newPath string, isDirectory bool) error {
	if !isDirectory {
		if err := r.store.UpdatePath(ctx, owner, oldPath, newPath); err != nil && !errors.Is(err, ErrShareNotFound) {
			return err
		}
		return nil
	}
	_, err := r.store.RewritePrefix(ctx, owner, oldPath+"/", newPath+"/")
	return err
}

// CascadeDelete는 삭제될 파일 또는 디렉토리 하위의 공유를 모두 제거합니다
func (r *ShareRegistry) CascadeDelete(ctx context.Context, owner int64, cleanPath string, isDirectory bool) error {
	var records []*ShareRecord
	if isDirectory {
		prefix := strings.TrimSuffix(cleanPath, "/") + "/"
		found, err := r.store.ListByPrefix(ctx, owner, prefix)
		if err != nil {
			return err
		}
		records = found
	} else {
		record, err := r.Get(ctx, owner, cleanPath)
		if err != nil {
			return err
		}
		if record != nil {
			records = append(records, record)
		}
	}
	return r.deleteRecords(ctx, records)
}

// SharedIn은 dir 바로 아래 항목 중 공유된 경로 집합을 반환합니다
func (r *ShareRegistry) SharedIn(ctx context.Context, owner int64, dir string) map[string]bool {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	records, err := r.store.ListByPrefix(ctx, owner, prefix)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", owner).Str("path", dir).Msg("[Share] failed to load shares for listing")
		return nil
	}
	shared := make(map[string]bool, len(records))
	for _, record := range records {
		shared[record.Path] = true
	}
	return shared
}

func (r *ShareRegistry) ListForOwner(ctx context.Context, owner int64) ([]*ShareRecord, error) {
	return r.store.ListByOwner(ctx, owner)
}

// ShortLinkFor는 레코드의 단축 링크 정보를 조회합니다. 실패해도 nil을 반환할 뿐입니다.
func (r *ShareRegistry) ShortLinkFor(ctx context.Context, record *ShareRecord) *ShortLink {
	if record == nil || record.ShortlinkID == 0 || r.shortener == nil {
		return nil
	}
	link, err := r.shortener.Lookup(ctx, record.ShortlinkID)
	if err != nil {
		log.Warn().Err(err).Int64("short_id", record.ShortlinkID).Msg("[Share] short link lookup failed")
		return nil
	}
	return link
}

// DeleteOwner는 사용자의 모든 공유를 제거합니다
func (r *ShareRegistry) DeleteOwner(ctx context.Context, owner int64) error {
	records, err := r.store.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}
	for _, record := range records {
		r.deleteShortlink(ctx, record.ShortlinkID)
	}
	return r.store.DeleteByOwner(ctx, owner)
}

func (r *ShareRegistry) deleteRecords(ctx context.Context, records []*ShareRecord) error {
	if len(records) == 0 {
		return nil
	}
	hashes := make([]string, 0, len(records))
	for _, record := range records {
		r.deleteShortlink(ctx, record.ShortlinkID)
		hashes = append(hashes, record.Hash)
	}
	return r.store.Delete(ctx, hashes...)
}

func (r *ShareRegistry) shorten(ctx context.Context, hash string) int64 {
	if r.shortener == nil || !r.settings().UseShortlinks {
		return 0
	}
	link, err := r.shortener.Shorten(ctx, r.PublicURL(hash))
	if err != nil {
		log.Warn().Err(err).Str("hash", hash).Msg("[Share] short link creation failed")
		return 0
	}
	return link.ID
}

func (r *ShareRegistry) deleteShortlink(ctx context.Context, id int64) {
	if id == 0 || r.shortener == nil {
		return
	}
	if err := r.shortener.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Int64("short_id", id).Msg("[Share] short link deletion failed")
	}
}

func hashFile(abs string) ([]byte, error) {
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// newPublicHash는 소유자, 내용 해시, 현재 시각, 난수, 경로로부터 추측 불가능한 해시를 만듭니다
func newPublicHash(owner int64, contentHash []byte, cleanPath string) (string, error) {
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(owner))
	h.Write(buf[:])
	h.Write(contentHash)
	binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	h.Write(buf[:])
	h.Write(random)
	h.Write([]byte(cleanPath))
	return hex.EncodeToString(h.Sum(nil)), nil
}
