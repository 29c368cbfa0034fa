package files

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// ensureRoot는 사용자 루트가 없으면 기본 폴더와 함께 만듭니다. 새로 만들었으면 true를 반환합니다.
func (s *Service) ensureRoot(userID int64, lang language.Tag) (bool, error) {
	root := s.layout.UserRoot(userID)
	if isDir(root) {
		return false, nil
	}

	if err := mkdirAll(filepath.Join(root, metaDirName)); err != nil {
		return false, err
	}
	if err := touch(filepath.Join(root, metaDirName, metaProtectedName)); err != nil {
		return false, errIO(err)
	}

	backupDir := filepath.Join(root, iconsBackupDirName)
	if err := mkdirAll(filepath.Join(backupDir, metaDirName)); err != nil {
		return false, err
	}
	s.bestEffort(userID, "mark icons backup", touch(filepath.Join(backupDir, metaDirName, metaProtectedName)))
	s.bestEffort(userID, "hide icons backup", touch(filepath.Join(backupDir, metaDirName, metaHideName)))

	names := defaultFolderNames[normalizeTag(lang)]
	for _, key := range defaultFolderOrder {
		folder := filepath.Join(root, names[key])
		if err := mkdirAll(filepath.Join(folder, metaDirName)); err != nil {
			return false, err
		}
		if s.iconsDir == "" {
			continue
		}
		icon := filepath.Join(s.iconsDir, key+".svg")
		s.bestEffort(userID, "copy default icon", copyReplace(icon, filepath.Join(folder, metaDirName, metaIconName)))
		s.bestEffort(userID, "back up default icon", copyReplace(icon, filepath.Join(backupDir, key)))
	}

	log.Info().Int64("user_id", userID).Msg("[Files] user root created")
	return true, nil
}

// reconcileTrash는 휴지통 디렉토리 존재 여부를 휴지통 권한에 맞춥니다
func (s *Service) reconcileTrash(ctx context.Context, userID int64, allowed bool) error {
	present := s.trash.Exists(userID)
	switch {
	case allowed && !present:
		return s.trash.ensure(userID)
	case !allowed && present:
		freed, err := s.trash.teardown(ctx, userID)
		s.ledger.apply(ctx, userID, -freed)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("[Trash] failed to remove trash after permission change")
		}
	}
	return nil
}

// resetIcon은 백업 폴더에서 기본 아이콘을 다시 복사합니다
func (s *Service) resetIcon(userID int64, dirAbs, key string) bool {
	backup := filepath.Join(s.layout.UserRoot(userID), iconsBackupDirName, key)
	if !isRegular(backup) {
		return false
	}
	if err := mkdirAll(filepath.Join(dirAbs, metaDirName)); err != nil {
		s.bestEffort(userID, "reset icon", err)
		return false
	}
	err := copyReplace(backup, filepath.Join(dirAbs, metaDirName, metaIconName))
	s.bestEffort(userID, "reset icon", err)
	return err == nil
}

// defaultIconKey는 폴더 이름이 어떤 언어의 기본 폴더 이름과 같으면 해당 아이콘 키를 반환합니다
func defaultIconKey(name string) string {
	for _, names := range defaultFolderNames {
		for key, folderName := range names {
			if folderName == name {
				return key
			}
		}
	}
	return ""
}

func (s *Service) bestEffort(userID int64, step string, err error) {
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("step", step).Msg("[Files] best-effort step failed")
	}
}

func touch(abs string) error {
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE, filePerm)
	if err != nil {
		return err
	}
	return f.Close()
}

func copyReplace(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
