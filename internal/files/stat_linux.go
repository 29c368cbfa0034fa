//go:build linux

package files

import (
	"io/fs"
	"syscall"
	"time"
)

// statTimes는 inode 변경 시각과 접근 시각을 반환합니다
func statTimes(info fs.FileInfo) (created, accessed time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return time.Unix(st.Ctim.Sec, st.Ctim.Nsec), time.Unix(st.Atim.Sec, st.Atim.Nsec)
}
