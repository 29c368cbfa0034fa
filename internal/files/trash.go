package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const trashInfoSuffix = ".trashinfo"

var trashIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// trashInfo는 휴지통 항목 옆에 저장되는 사이드카입니다
type trashInfo struct {
	OriginalPath string `json:"original_path"`
	DeletedAt    int64  `json:"deleted_at"`
	Size         int64  `json:"size"`
}

// TrashEntry는 휴지통의 한 항목입니다. ID는 디스크상의 이름입니다.
type TrashEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OriginalPath string `json:"original_path"`
	DeletedAt    int64  `json:"deleted_at"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
}

// Trash는 사용자 루트 옆의 휴지통 디렉토리를 관리합니다
type Trash struct {
	layout Layout
}

func NewTrash(layout Layout) *Trash {
	return &Trash{layout: layout}
}

func newTrashID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (t *Trash) entryPath(userID int64, id string) (string, string, error) {
	if !trashIDPattern.MatchString(id) {
		return "", "", newError(KindValidation, msgInvalidValue, nil).with("parameter", "id")
	}
	root := t.layout.TrashRoot(userID)
	return filepath.Join(root, id), filepath.Join(root, id+trashInfoSuffix), nil
}

func (t *Trash) Exists(userID int64) bool {
	return isDir(t.layout.TrashRoot(userID))
}

func (t *Trash) ensure(userID int64) error {
	return mkdirAll(t.layout.TrashRoot(userID))
}

// Put은 abs 노드를 휴지통으로 옮기고 원래 경로와 크기를 사이드카에 기록합니다
func (t *Trash) Put(userID int64, cleanPath, abs string, size int64) (string, error) {
	if err := t.ensure(userID); err != nil {
		return "", err
	}

	id := newTrashID()
	node, sidecar, err := t.entryPath(userID, id)
	if err != nil {
		return "", err
	}

	info := trashInfo{OriginalPath: cleanPath, DeletedAt: time.Now().Unix(), Size: size}
	if err := writeTrashInfo(sidecar, info); err != nil {
		return "", errIO(err)
	}
	if err := os.Rename(abs, node); err != nil {
		os.Remove(sidecar)
		return "", errIO(err)
	}
	return id, nil
}

// List는 읽을 수 있는 사이드카를 가진 항목과 크기 합계를 반환합니다
func (t *Trash) List(userID int64) ([]TrashEntry, int64, error) {
	root := t.layout.TrashRoot(userID)
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []TrashEntry{}, 0, nil
		}
		return nil, 0, errIO(err)
	}

	entries := make([]TrashEntry, 0, len(dirEntries)/2)
	var total int64
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if !strings.HasSuffix(name, trashInfoSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, trashInfoSuffix)
		if !trashIDPattern.MatchString(id) {
			continue
		}
		info, err := readTrashInfo(filepath.Join(root, name))
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", id).Msg("[Trash] skipping unreadable sidecar")
			continue
		}
		nodeInfo, err := os.Stat(filepath.Join(root, id))
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", id).Msg("[Trash] sidecar without item")
			continue
		}

		entryType := NodeTypeFile
		if nodeInfo.IsDir() {
			entryType = NodeTypeDir
		}
		entries = append(entries, TrashEntry{
			ID:           id,
			Name:         filepath.Base(info.OriginalPath),
			OriginalPath: info.OriginalPath,
			DeletedAt:    info.DeletedAt,
			Size:         info.Size,
			Type:         entryType,
		})
		total += info.Size
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DeletedAt > entries[j].DeletedAt
	})
	return entries, total, nil
}

// Restore는 항목을 원래 경로로 되돌립니다. 사용량은 바꾸지 않습니다.
func (t *Trash) Restore(userID int64, id string) (string, error) {
	node, sidecar, err := t.entryPath(userID, id)
	if err != nil {
		return "", err
	}
	info, err := readTrashInfo(sidecar)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(KindNotFound, msgTrashNotFound, err)
		}
		return "", errIO(err)
	}
	if !exists(node) {
		return "", newError(KindNotFound, msgTrashNotFound, nil)
	}

	cleanPath := Sanitize(info.OriginalPath)
	if cleanPath == "/" {
		return "", errProtected(cleanPath)
	}
	dest, err := t.layout.Resolve(userID, cleanPath)
	if err != nil {
		return "", errPermission()
	}
	if exists(dest) {
		return "", errAlreadyExists(cleanPath)
	}
	if err := mkdirAll(filepath.Dir(dest)); err != nil {
		return "", err
	}
	if err := os.Rename(node, dest); err != nil {
		return "", errIO(err)
	}
	if err := os.Remove(sidecar); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", id).Msg("[Trash] failed to remove sidecar")
	}
	return cleanPath, nil
}

// Remove는 항목 하나를 영구 삭제하고 해제된 바이트 수를 반환합니다
func (t *Trash) Remove(ctx context.Context, userID int64, id string) (int64, error) {
	node, sidecar, err := t.entryPath(userID, id)
	if err != nil {
		return 0, err
	}
	if !exists(node) {
		return 0, newError(KindNotFound, msgTrashNotFound, nil)
	}

	size, err := t.itemSize(ctx, node, sidecar)
	if err != nil {
		return 0, errIO(err)
	}
	if err := removeTree(node); err != nil {
		return 0, err
	}
	if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", id).Msg("[Trash] failed to remove sidecar")
	}
	return size, nil
}

// Empty는 휴지통의 모든 항목을 지웁니다. 해제된 바이트 수와 휴지통이 비었는지를 반환합니다.
func (t *Trash) Empty(ctx context.Context, userID int64) (int64, bool, error) {
	root := t.layout.TrashRoot(userID)
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, true, nil
		}
		return 0, false, errIO(err)
	}

	var freed int64
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if strings.HasSuffix(name, trashInfoSuffix) {
			continue
		}
		node := filepath.Join(root, name)
		size, err := t.itemSize(ctx, node, node+trashInfoSuffix)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", name).Msg("[Trash] failed to size item")
			continue
		}
		if err := os.RemoveAll(node); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", name).Msg("[Trash] failed to remove item")
			continue
		}
		freed += size
	}

	// 항목 없이 남은 사이드카도 정리
	remaining := 0
	dirEntries, _ = os.ReadDir(root)
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if strings.HasSuffix(name, trashInfoSuffix) && !exists(filepath.Join(root, strings.TrimSuffix(name, trashInfoSuffix))) {
			if err := os.Remove(filepath.Join(root, name)); err == nil {
				continue
			}
		}
		remaining++
	}
	return freed, remaining == 0, nil
}

// teardown은 휴지통을 비우고 디렉토리를 제거합니다
func (t *Trash) teardown(ctx context.Context, userID int64) (int64, error) {
	freed, empty, err := t.Empty(ctx, userID)
	if err != nil {
		return freed, err
	}
	if !empty {
		return freed, newError(KindIO, msgTrashNotEmptied, nil)
	}
	if err := os.Remove(t.layout.TrashRoot(userID)); err != nil {
		return freed, errIO(err)
	}
	return freed, nil
}

// itemSize는 사이드카의 크기를 우선 사용하고, 읽을 수 없으면 직접 측정합니다
func (t *Trash) itemSize(ctx context.Context, node, sidecar string) (int64, error) {
	if info, err := readTrashInfo(sidecar); err == nil {
		return info.Size, nil
	}
	return SizeOf(ctx, node)
}

// measure는 휴지통 항목의 실제 크기 합계를 계산하고, 크기가 어긋난 사이드카를 바로잡습니다
func (t *Trash) measure(ctx context.Context, userID int64) (int64, error) {
	root := t.layout.TrashRoot(userID)
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	var total int64
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if strings.HasSuffix(name, trashInfoSuffix) {
			continue
		}
		node := filepath.Join(root, name)
		size, err := SizeOf(ctx, node)
		if err != nil {
			return 0, err
		}
		total += size

		sidecar := node + trashInfoSuffix
		info, err := readTrashInfo(sidecar)
		if err != nil || info.Size == size {
			continue
		}
		info.Size = size
		if err := writeTrashInfo(sidecar, info); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("trash_id", name).Msg("[Trash] failed to reconcile sidecar size")
		}
	}
	return total, nil
}

func readTrashInfo(sidecar string) (trashInfo, error) {
	var info trashInfo
	data, err := os.ReadFile(sidecar)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("corrupt trash sidecar %s: %w", filepath.Base(sidecar), err)
	}
	if info.OriginalPath == "" {
		return info, fmt.Errorf("corrupt trash sidecar %s: missing original path", filepath.Base(sidecar))
	}
	return info, nil
}

func writeTrashInfo(sidecar string, info trashInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(sidecar, data, filePerm)
}
