package files

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

func (s *Service) actionTable() map[string]action {
	private := []Capability{CapPrivateFiles}
	trash := []Capability{CapPrivateFiles, CapTrash}
	public := []Capability{CapPublicFiles}

	return map[string]action{
		"list-files":        {required: []string{"path"}, caps: private, run: s.listFiles},
		"upload":            {required: []string{"path"}, run: s.upload},
		"rename":            {required: []string{"path", "new_path"}, caps: private, run: s.rename},
		"move":              {required: []string{"path", "destination"}, caps: private, run: s.move},
		"copy":              {required: []string{"path", "destination"}, caps: private, run: s.copy},
		"delete":            {required: []string{"path"}, caps: private, run: s.delete},
		"delete-trash-item": {required: []string{"id"}, caps: trash, run: s.deleteTrashItem},
		"list-trash":        {caps: trash, run: s.listTrash},
		"restore":           {required: []string{"id"}, caps: trash, run: s.restore},
		"empty-trash":       {caps: trash, run: s.emptyTrash},
		"create-folder":     {required: []string{"path"}, caps: private, run: s.createFolder},
		"create-file":       {required: []string{"path"}, caps: private, run: s.createFile},
		"save-file":         {required: []string{"path", "content"}, caps: private, run: s.saveFile},
		"get-share-status":  {required: []string{"path"}, caps: public, run: s.shareStatus},
		"share":             {required: []string{"path"}, caps: public, run: s.share},
		"stop-sharing":      {required: []string{"path"}, caps: public, run: s.stopSharing},
		"list-public":       {caps: []Capability{CapPublicFiles, CapListPublic}, run: s.listPublic},
		"get-usage":         {run: s.usage},
		"reset-icon":        {required: []string{"path"}, caps: private, run: s.resetIconAction},
		"set-hidden":        {required: []string{"path", "hidden"}, caps: private, run: s.setHidden},
	}
}

// Actions는 처리 가능한 액션 이름 목록입니다
func (s *Service) Actions() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Service) listFiles(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(abs)
	if statErr != nil || !info.IsDir() {
		if statErr == nil {
			node, err := describe(abs)
			if err != nil {
				return nil, errIO(err)
			}
			record, _ := s.shares.Get(ctx, sess.userID, cleanPath)
			node.Shared = record != nil
			return nil, newError(KindNotFound, msgNotDirectory, nil).
				with("is_file", true).
				with("clean_path", cleanPath).
				with("file", node)
		}
		return nil, errNotFound(cleanPath).with("is_file", false).with("clean_path", cleanPath)
	}

	entries, err := listDir(abs, p.flag("show_hidden"))
	if err != nil {
		return nil, errIO(err)
	}
	shared := s.shares.SharedIn(ctx, sess.userID, cleanPath)
	for i := range entries {
		entries[i].Shared = shared[path.Join(cleanPath, entries[i].Name)]
	}
	return &ListFilesResult{CleanPath: cleanPath, Files: entries}, nil
}

func (s *Service) upload(ctx context.Context, sess *session, p Params, upload *Upload) (any, error) {
	if upload == nil || upload.Reader == nil {
		return nil, errMissingParameter("file")
	}
	if upload.Size < 0 {
		return nil, newError(KindValidation, msgInvalidValue, nil).with("parameter", "file")
	}
	if !validName(upload.Name) {
		return nil, newError(KindValidation, msgInvalidName, nil).with("name", upload.Name)
	}

	if p.flag("public") || !sess.rc.Has(CapPrivateFiles) {
		if !sess.rc.Has(CapPublicFiles) {
			return nil, errPermission()
		}
		return s.uploadPublic(ctx, sess, upload)
	}

	dirPath, dirAbs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if exists(dirAbs) && !isDir(dirAbs) {
		return nil, newError(KindValidation, msgNotDirectory, nil).with("path", dirPath)
	}

	target := path.Join(dirPath, upload.Name)
	targetAbs := filepath.Join(dirAbs, upload.Name)
	if exists(targetAbs) {
		return nil, errAlreadyExists(target)
	}
	if _, err := s.reserve(sess, upload.Size, 0); err != nil {
		return nil, err
	}
	if err := mkdirAll(dirAbs); err != nil {
		return nil, err
	}

	written, err := writeStream(targetAbs, upload.Reader, upload.Size)
	if err != nil {
		return nil, withPath(err, target)
	}
	s.commit(ctx, sess, written)
	return &UploadResult{Path: target, Size: written}, nil
}

// uploadPublic은 추측할 수 없는 다단계 경로(/public_files/ab/cd/<나머지>/<이름>)에 저장한 뒤 공유합니다
func (s *Service) uploadPublic(ctx context.Context, sess *session, upload *Upload) (any, error) {
	if _, err := s.reserve(sess, upload.Size, 0); err != nil {
		return nil, err
	}

	tmpDir := s.layout.uploadTmpDir(sess.userID)
	if err := mkdirAll(tmpDir); err != nil {
		return nil, err
	}
	tmp := filepath.Join(tmpDir, newTrashID())
	hasher := sha256.New()
	written, err := writeStream(tmp, io.TeeReader(upload.Reader, hasher), upload.Size)
	if err != nil {
		return nil, err
	}

	hash, err := newPublicHash(sess.userID, hasher.Sum(nil), upload.Name)
	if err != nil {
		os.Remove(tmp)
		return nil, errIO(err)
	}
	cleanPath := path.Join("/", publicFilesDirName, hash[:2], hash[2:4], hash[4:], upload.Name)
	abs, err := s.layout.Resolve(sess.userID, cleanPath)
	if err != nil {
		os.Remove(tmp)
		return nil, errPermission()
	}
	if err := mkdirAll(filepath.Dir(abs)); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := moveNode(tmp, abs); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	s.commit(ctx, sess, written)

	record, err := s.shares.Share(ctx, sess.userID, cleanPath, abs)
	if err != nil {
		if rmErr := removeTree(filepath.Dir(abs)); rmErr == nil {
			s.commit(ctx, sess, -written)
		}
		return nil, err
	}

	result := &UploadResult{
		Path:   cleanPath,
		Size:   written,
		Public: true,
		Hash:   record.Hash,
		URL:    s.shares.PublicURL(record.Hash),
	}
	if link := s.shares.ShortLinkFor(ctx, record); link != nil {
		result.ShortURL = link.URL
	}
	return result, nil
}

func (s *Service) rename(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	srcPath, srcAbs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	dstPath, dstAbs, err := s.resolve(sess, p["new_path"])
	if err != nil {
		return nil, err
	}

	if err := s.checkMovable(srcPath, srcAbs); err != nil {
		return nil, err
	}
	if dstPath == srcPath || exists(dstAbs) {
		return nil, errAlreadyExists(dstPath)
	}
	if IsInside(srcPath, dstPath) {
		return nil, newError(KindConflict, msgIntoItself, nil).with("path", dstPath)
	}

	return s.relocate(ctx, sess, srcPath, srcAbs, dstPath, dstAbs)
}

func (s *Service) move(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	srcPath, srcAbs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	destPath, destAbs, err := s.resolve(sess, p["destination"])
	if err != nil {
		return nil, err
	}

	if err := s.checkMovable(srcPath, srcAbs); err != nil {
		return nil, err
	}
	if !isDir(destAbs) {
		return nil, errNotFound(destPath)
	}

	target := path.Join(destPath, path.Base(srcPath))
	targetAbs := filepath.Join(destAbs, filepath.Base(srcAbs))
	if target == srcPath || exists(targetAbs) {
		return nil, errAlreadyExists(target)
	}
	if IsInside(srcPath, target) {
		return nil, newError(KindConflict, msgIntoItself, nil).with("path", target)
	}

	return s.relocate(ctx, sess, srcPath, srcAbs, target, targetAbs)
}

func (s *Service) checkMovable(cleanPath, abs string) error {
	if isProtected(cleanPath, abs) {
		return errProtected(cleanPath)
	}
	if !exists(abs) {
		return errNotFound(cleanPath)
	}
	return nil
}

// relocate는 rename과 move의 공통 부분입니다. 성공하면 공유 경로를 따라 갱신합니다.
func (s *Service) relocate(ctx context.Context, sess *session, srcPath, srcAbs, dstPath, dstAbs string) (any, error) {
	directory := isDir(srcAbs)
	if err := mkdirAll(filepath.Dir(dstAbs)); err != nil {
		return nil, err
	}
	if err := moveNode(srcAbs, dstAbs); err != nil {
		return nil, withPath(err, dstPath)
	}

	if err := s.shares.RewriteOnMove(ctx, sess.userID, srcPath, dstPath, directory); err != nil {
		// 옛 경로에 남은 공유가 나중에 같은 경로에 생긴 파일을 공개하지 않도록 제거
		log.Warn().Err(err).Int64("user_id", sess.userID).Str("path", srcPath).Msg("[Share] failed to rewrite share paths, dropping them")
		if err := s.shares.CascadeDelete(ctx, sess.userID, srcPath, directory); err != nil {
			log.Error().Err(err).Int64("user_id", sess.userID).Str("path", srcPath).Msg("[Share] failed to drop stale shares")
		}
	}
	return &PathResult{Path: dstPath}, nil
}

func (s *Service) copy(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	srcPath, srcAbs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	dstPath, dstAbs, err := s.resolve(sess, p["destination"])
	if err != nil {
		return nil, err
	}

	if !exists(srcAbs) {
		return nil, errNotFound(srcPath)
	}
	// 보호 표시까지 복사되면 사본을 지울 수 없게 됩니다
	if isProtected(srcPath, srcAbs) {
		return nil, errProtected(srcPath)
	}
	if IsInside(srcPath, dstPath) {
		return nil, newError(KindConflict, msgIntoItself, nil).with("path", dstPath)
	}
	if exists(dstAbs) {
		return nil, errAlreadyExists(dstPath)
	}

	size, err := SizeOf(ctx, srcAbs)
	if err != nil {
		return nil, errIO(err)
	}
	delta, err := s.reserve(sess, size, 0)
	if err != nil {
		return nil, err
	}
	if err := mkdirAll(filepath.Dir(dstAbs)); err != nil {
		return nil, err
	}
	if err := copyTree(srcAbs, dstAbs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errAlreadyExists(dstPath)
		}
		if rmErr := os.RemoveAll(dstAbs); rmErr != nil {
			log.Warn().Err(rmErr).Int64("user_id", sess.userID).Str("path", dstPath).Msg("[Files] failed to remove partial copy")
		}
		return nil, errIO(err)
	}
	s.commit(ctx, sess, delta)
	return &PathResult{Path: dstPath}, nil
}

func (s *Service) delete(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if err := s.checkMovable(cleanPath, abs); err != nil {
		return nil, err
	}

	directory := isDir(abs)
	size, err := SizeOf(ctx, abs)
	if err != nil {
		return nil, errIO(err)
	}
	if err := s.shares.CascadeDelete(ctx, sess.userID, cleanPath, directory); err != nil {
		return nil, errIO(err)
	}

	if sess.trashEnabled && !p.flag("skip_trash") {
		id, err := s.trash.Put(sess.userID, cleanPath, abs, size)
		if err != nil {
			return nil, err
		}
		return &DeleteResult{Path: cleanPath, Trashed: true, TrashID: id}, nil
	}

	if err := removeTree(abs); err != nil {
		return nil, err
	}
	s.commit(ctx, sess, -size)
	return &DeleteResult{Path: cleanPath, Freed: size}, nil
}

func (s *Service) deleteTrashItem(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	freed, err := s.trash.Remove(ctx, sess.userID, p["id"])
	if err != nil {
		return nil, err
	}
	s.commit(ctx, sess, -freed)
	return &EmptyTrashResult{Freed: freed}, nil
}

func (s *Service) listTrash(_ context.Context, sess *session, _ Params, _ *Upload) (any, error) {
	items, total, err := s.trash.List(sess.userID)
	if err != nil {
		return nil, err
	}
	return &TrashListResult{Items: items, TotalSize: total}, nil
}

func (s *Service) restore(_ context.Context, sess *session, p Params, _ *Upload) (any, error) {
	restored, err := s.trash.Restore(sess.userID, p["id"])
	if err != nil {
		return nil, err
	}
	return &PathResult{Path: restored}, nil
}

func (s *Service) emptyTrash(ctx context.Context, sess *session, _ Params, _ *Upload) (any, error) {
	freed, empty, err := s.trash.Empty(ctx, sess.userID)
	s.commit(ctx, sess, -freed)
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, newError(KindIO, msgTrashNotEmptied, nil)
	}
	return &EmptyTrashResult{Freed: freed}, nil
}

func (s *Service) createFolder(_ context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if exists(abs) {
		return nil, errAlreadyExists(cleanPath)
	}
	if !validName(path.Base(cleanPath)) {
		return nil, newError(KindValidation, msgInvalidName, nil).with("path", cleanPath)
	}
	if err := mkdirAll(filepath.Dir(abs)); err != nil {
		return nil, err
	}
	if err := os.Mkdir(abs, dirPerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errAlreadyExists(cleanPath)
		}
		return nil, newError(KindIO, msgMkdirFailed, err)
	}
	return &PathResult{Path: cleanPath}, nil
}

func (s *Service) createFile(_ context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if exists(abs) {
		return nil, errAlreadyExists(cleanPath)
	}
	if !validName(path.Base(cleanPath)) {
		return nil, newError(KindValidation, msgInvalidName, nil).with("path", cleanPath)
	}
	if err := createEmptyFile(abs); err != nil {
		return nil, withPath(err, cleanPath)
	}
	return &PathResult{Path: cleanPath}, nil
}

func (s *Service) saveFile(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if cleanPath == "/" || isDir(abs) {
		return nil, errAlreadyExists(cleanPath)
	}
	if !validName(path.Base(cleanPath)) {
		return nil, newError(KindValidation, msgInvalidName, nil).with("path", cleanPath)
	}

	content := []byte(p["content"])
	var existing int64
	if info, err := os.Stat(abs); err == nil {
		existing = info.Size()
	}
	delta, err := s.reserve(sess, int64(len(content)), existing)
	if err != nil {
		return nil, err
	}
	if err := writeContent(abs, content); err != nil {
		return nil, err
	}
	s.commit(ctx, sess, delta)
	return &PathResult{Path: cleanPath}, nil
}

func (s *Service) shareStatus(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	record, err := s.shares.Get(ctx, sess.userID, cleanPath)
	if err != nil {
		return nil, errIO(err)
	}
	if record == nil {
		return &ShareStatusResult{Path: cleanPath, CanShare: isRegular(abs)}, nil
	}
	return s.sharedResult(ctx, record), nil
}

func (s *Service) share(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if !isRegular(abs) {
		return nil, newError(KindValidation, msgCannotShare, nil).with("path", cleanPath)
	}
	record, err := s.shares.Share(ctx, sess.userID, cleanPath, abs)
	if err != nil {
		return nil, err
	}
	return s.sharedResult(ctx, record), nil
}

func (s *Service) sharedResult(ctx context.Context, record *ShareRecord) *ShareStatusResult {
	result := &ShareStatusResult{
		Path:     record.Path,
		Shared:   true,
		CanShare: true,
		Hash:     record.Hash,
		URL:      s.shares.PublicURL(record.Hash),
	}
	if link := s.shares.ShortLinkFor(ctx, record); link != nil {
		result.ShortURL = link.URL
	}
	return result
}

// stopSharing은 공유를 해제합니다. 개인 파일 권한이 없는 사용자의 파일은 함께 삭제되며,
// 그 삭제 실패는 공유 해제 결과에 영향을 주지 않습니다.
func (s *Service) stopSharing(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if _, err := s.shares.Unshare(ctx, sess.userID, cleanPath); err != nil {
		return nil, err
	}

	if !sess.rc.Has(CapPrivateFiles) && exists(abs) {
		size, err := SizeOf(ctx, abs)
		if err == nil {
			err = os.RemoveAll(abs)
		}
		if err != nil {
			log.Warn().Err(err).Int64("user_id", sess.userID).Str("path", cleanPath).Msg("[Share] failed to delete unshared public file")
		} else {
			s.commit(ctx, sess, -size)
		}
	}
	return &ShareStatusResult{Path: cleanPath, CanShare: isRegular(abs)}, nil
}

func (s *Service) listPublic(ctx context.Context, sess *session, _ Params, _ *Upload) (any, error) {
	records, err := s.shares.ListForOwner(ctx, sess.userID)
	if err != nil {
		return nil, errIO(err)
	}

	files := make([]PublicFile, 0, len(records))
	for _, record := range records {
		item := PublicFile{
			Hash: record.Hash,
			Path: record.Path,
			URL:  s.shares.PublicURL(record.Hash),
		}
		if abs, err := s.layout.Resolve(sess.userID, Sanitize(record.Path)); err == nil {
			item.Exists = isRegular(abs)
		}
		if link := s.shares.ShortLinkFor(ctx, record); link != nil {
			item.ShortURL = link.URL
		}
		files = append(files, item)
	}
	return &ListPublicResult{Files: files}, nil
}

func (s *Service) usage(ctx context.Context, sess *session, _ Params, _ *Upload) (any, error) {
	result := &UsageResult{
		Usage:     sess.usage,
		Quota:     sess.quota,
		Unlimited: sess.quota == 0,
	}
	if stat, err := disk.UsageWithContext(ctx, s.layout.DataRoot); err == nil {
		result.DiskFree = stat.Free
	} else {
		log.Warn().Err(err).Msg("[Files] failed to read disk usage")
	}
	return result, nil
}

func (s *Service) resetIconAction(ctx context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if cleanPath == "/" || !isDir(abs) {
		return nil, errNotFound(cleanPath)
	}

	key := p["icon"]
	if key == "" {
		key = defaultIconKey(path.Base(cleanPath))
	}
	if !slices.Contains(defaultFolderOrder, key) {
		return nil, newError(KindValidation, msgInvalidValue, nil).with("parameter", "icon")
	}

	iconAbs := filepath.Join(abs, metaDirName, metaIconName)
	var existing int64
	if info, err := os.Stat(iconAbs); err == nil {
		existing = info.Size()
	}
	var incoming int64
	if info, err := os.Stat(filepath.Join(s.layout.UserRoot(sess.userID), iconsBackupDirName, key)); err == nil {
		incoming = info.Size()
	}
	delta, err := s.reserve(sess, incoming, existing)
	if err != nil {
		return nil, err
	}

	reset := s.resetIcon(sess.userID, abs, key)
	if reset {
		s.commit(ctx, sess, delta)
	}
	return &IconResult{Path: cleanPath, Reset: reset}, nil
}

func (s *Service) setHidden(_ context.Context, sess *session, p Params, _ *Upload) (any, error) {
	cleanPath, abs, err := s.resolve(sess, p["path"])
	if err != nil {
		return nil, err
	}
	if cleanPath == "/" || !isDir(abs) {
		return nil, errNotFound(cleanPath)
	}

	marker := filepath.Join(abs, metaDirName, metaHideName)
	switch p["hidden"] {
	case "1":
		if err := mkdirAll(filepath.Dir(marker)); err != nil {
			return nil, err
		}
		if err := touch(marker); err != nil {
			return nil, errIO(err)
		}
		return &HiddenResult{Path: cleanPath, Hidden: true}, nil
	case "0":
		if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errIO(err)
		}
		return &HiddenResult{Path: cleanPath, Hidden: false}, nil
	default:
		return nil, newError(KindValidation, msgInvalidValue, nil).with("parameter", "hidden")
	}
}

// withPath는 fs 헬퍼가 파일 이름만 담은 에러에 정리된 경로를 채웁니다
func withPath(err error, cleanPath string) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Fields != nil {
		if _, ok := fe.Fields["path"]; ok {
			fe.Fields["path"] = cleanPath
		}
	}
	return err
}
