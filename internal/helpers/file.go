package helpers

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"strings"
)

func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func MD5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

// ReadLines 从指定位置读取日志文件的若干行。
// direction为forward时从pos向后读取limit行，返回读取结束后的新位置；
// 为backward时读取pos之前的最多limit行，返回第一行的起始位置。
func ReadLines(path string, pos int64, limit int, direction string) ([]string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	size := int64(len(data))
	if pos < 0 {
		pos = 0
	}
	if pos > size {
		pos = size
	}
	if limit <= 0 {
		limit = 100
	}

	if direction == "backward" {
		chunk := string(data[:pos])
		chunk = strings.TrimRight(chunk, "\n")
		if chunk == "" {
			return []string{}, 0, nil
		}
		lines := strings.Split(chunk, "\n")
		start := 0
		if len(lines) > limit {
			start = len(lines) - limit
		}
		selected := lines[start:]
		// 新位置为所选第一行的字节偏移
		newPos := pos
		for _, l := range selected {
			newPos -= int64(len(l) + 1)
		}
		if newPos < 0 {
			newPos = 0
		}
		return selected, newPos, nil
	}

	chunk := string(data[pos:])
	if chunk == "" {
		return []string{}, pos, nil
	}
	lines := strings.Split(chunk, "\n")
	// 丢弃末尾可能不完整的行
	if len(lines) > 0 && !strings.HasSuffix(chunk, "\n") {
		lines = lines[:len(lines)-1]
	}
	var selected []string
	newPos := pos
	for _, l := range lines {
		if len(selected) >= limit {
			break
		}
		newPos += int64(len(l) + 1)
		if l == "" {
			continue
		}
		selected = append(selected, l)
	}
	if selected == nil {
		selected = []string{}
	}
	return selected, newPos, nil
}
