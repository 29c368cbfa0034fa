package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

const (
	NodeTypeFile = "file"
	NodeTypeDir  = "dir"

	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// NodeInfo는 파일/디렉토리 하나의 메타데이터입니다
type NodeInfo struct {
	Type         string `json:"type"`
	Creation     int64  `json:"creation"`
	Modification int64  `json:"modification"`
	Access       int64  `json:"access"`
	Size         int64  `json:"size"`
	Child        int    `json:"child,omitempty"`
	Mime         string `json:"mime,omitempty"`
	Shared       bool   `json:"shared"`
	Hidden       bool   `json:"hidden"`
	Protected    bool   `json:"protected,omitempty"`
	Icon         bool   `json:"icon,omitempty"`
	IconVersion  int64  `json:"icon_version,omitempty"`
}

func (n *NodeInfo) IsDir() bool {
	return n.Type == NodeTypeDir
}

// ListEntry는 디렉토리 목록의 한 항목입니다
type ListEntry struct {
	Name string `json:"name"`
	NodeInfo
}

func exists(abs string) bool {
	_, err := os.Lstat(abs)
	return err == nil
}

func isDir(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

func isRegular(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// describe는 abs의 메타데이터를 읽습니다. 존재하지 않으면 fs.ErrNotExist를 감싼 에러를 반환합니다.
func describe(abs string) (*NodeInfo, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	created, accessed := statTimes(info)
	node := &NodeInfo{
		Creation:     created.Unix(),
		Modification: info.ModTime().Unix(),
		Access:       accessed.Unix(),
	}

	if info.IsDir() {
		node.Type = NodeTypeDir
		entries, err := os.ReadDir(abs)
		if err == nil {
			for _, entry := range entries {
				if entry.Name() != metaDirName {
					node.Child++
				}
			}
		}
		metaDir := filepath.Join(abs, metaDirName)
		node.Hidden = filepath.Base(abs) == metaDirName || exists(filepath.Join(metaDir, metaHideName))
		node.Protected = exists(filepath.Join(metaDir, metaProtectedName))
		if iconInfo, err := os.Stat(filepath.Join(metaDir, metaIconName)); err == nil && iconInfo.Mode().IsRegular() {
			node.Icon = true
			node.IconVersion = iconInfo.ModTime().Unix()
		}
		return node, nil
	}

	node.Type = NodeTypeFile
	node.Size = info.Size()
	node.Mime = DetectMime(abs)
	return node, nil
}

// DetectMime은 내용 기반으로 MIME 타입을 판별합니다
func DetectMime(abs string) string {
	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}

// SizeOf는 abs 하위의 모든 일반 파일 크기 합계를 반환합니다. 파일이면 그 파일 크기입니다.
func SizeOf(ctx context.Context, abs string) (int64, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, abs, func(p string, d os.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrPermission) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		entryInfo, err := d.Info()
		if err != nil {
			return nil
		}
		total.Add(entryInfo.Size())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", abs, err)
	}
	return total.Load(), nil
}

// listDir은 abs의 항목을 디렉토리 먼저, 대소문자 무시 자연 정렬 순으로 반환합니다.
// .meta 폴더는 showHidden일 때만 포함됩니다.
func listDir(abs string, showHidden bool) ([]ListEntry, error) {
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	result := make([]ListEntry, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == metaDirName && !showHidden {
			continue
		}
		node, err := describe(filepath.Join(abs, name))
		if err != nil {
			continue
		}
		if node.Hidden && !showHidden {
			continue
		}
		result = append(result, ListEntry{Name: name, NodeInfo: *node})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].IsDir() != result[j].IsDir() {
			return result[i].IsDir()
		}
		return naturalLess(result[i].Name, result[j].Name)
	})
	return result, nil
}

// mkdirAll은 부모 생성 실패를 별도의 에러 분류로 표면화합니다
func mkdirAll(abs string) error {
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return newError(KindIO, msgMkdirFailed, err)
	}
	return nil
}

func createEmptyFile(abs string) error {
	if err := mkdirAll(filepath.Dir(abs)); err != nil {
		return err
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errExistsAt(abs)
		}
		return errIO(err)
	}
	return f.Close()
}

// writeContent는 파일 전체 내용을 교체합니다
func writeContent(abs string, content []byte) error {
	if err := mkdirAll(filepath.Dir(abs)); err != nil {
		return err
	}
	if err := os.WriteFile(abs, content, filePerm); err != nil {
		return errIO(err)
	}
	return nil
}

// writeStream은 src에서 최대 limit 바이트를 새 파일 abs에 씁니다.
// 파일이 이미 있으면 실패하고, limit를 넘는 데이터가 남아 있으면 파일을 지우고 실패합니다.
func writeStream(abs string, src io.Reader, limit int64) (int64, error) {
	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, errExistsAt(abs)
		}
		return 0, errIO(err)
	}

	written, err := io.Copy(dst, io.LimitReader(src, limit))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(abs)
		return 0, errIO(err)
	}

	var extra [1]byte
	if n, _ := src.Read(extra[:]); n > 0 {
		os.Remove(abs)
		return 0, newError(KindValidation, msgUploadTooLarge, nil)
	}
	return written, nil
}

// moveNode는 src를 dst로 옮깁니다. dst가 이미 있거나 src가 없으면 실패합니다.
func moveNode(src, dst string) error {
	if !exists(src) {
		return errNotFoundAt(src)
	}
	if exists(dst) {
		return errExistsAt(dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return errIO(err)
	}
	return nil
}

// copyTree는 파일 또는 디렉토리를 재귀적으로 복사합니다
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst)
}

// copyFile은 단일 파일을 복사합니다.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, sourceInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	if err := destFile.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), sourceInfo.ModTime())
}

// copyDir은 디렉토리를 재귀적으로 복사합니다.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.Mkdir(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeTree(abs string) error {
	if err := os.RemoveAll(abs); err != nil {
		return errIO(err)
	}
	return nil
}

// 절대 경로는 호출자에게 노출하지 않으므로 파일 이름만 담습니다
func errExistsAt(abs string) *Error {
	return errAlreadyExists(filepath.Base(abs))
}

func errNotFoundAt(abs string) *Error {
	return errNotFound(filepath.Base(abs))
}
