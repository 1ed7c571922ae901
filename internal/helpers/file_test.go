package helpers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}
	return path
}

func TestReadLinesForward(t *testing.T) {
	path := writeLogFile(t, "line1\nline2\nline3\n")

	lines, pos, err := ReadLines(path, 0, 2, "forward")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(lines) != 2 || lines[0] != "line1" || lines[1] != "line2" {
		t.Errorf("前两行不正确: %v", lines)
	}

	lines, _, err = ReadLines(path, pos, 10, "forward")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(lines) != 1 || lines[0] != "line3" {
		t.Errorf("续读结果不正确: %v", lines)
	}
}

func TestReadLinesForwardSkipsIncompleteTail(t *testing.T) {
	path := writeLogFile(t, "line1\npartial")

	lines, _, err := ReadLines(path, 0, 10, "forward")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(lines) != 1 || lines[0] != "line1" {
		t.Errorf("不完整的末行应被丢弃: %v", lines)
	}
}

func TestReadLinesBackward(t *testing.T) {
	content := "line1\nline2\nline3\n"
	path := writeLogFile(t, content)

	lines, pos, err := ReadLines(path, int64(len(content)), 2, "backward")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(lines) != 2 || lines[0] != "line2" || lines[1] != "line3" {
		t.Errorf("末两行不正确: %v", lines)
	}

	lines, pos, err = ReadLines(path, pos, 2, "backward")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(lines) != 1 || lines[0] != "line1" {
		t.Errorf("继续回读结果不正确: %v", lines)
	}
	if pos != 0 {
		t.Errorf("读到文件开头时pos应为0, 实际 %d", pos)
	}
}

func TestPathExists(t *testing.T) {
	path := writeLogFile(t, "x")
	if !PathExists(path) {
		t.Error("已存在的文件应返回true")
	}
	if PathExists(filepath.Join(t.TempDir(), "missing")) {
		t.Error("不存在的文件应返回false")
	}
}

func TestMD5Hash(t *testing.T) {
	if got := MD5Hash("backup:job:1"); len(got) != 32 {
		t.Errorf("MD5摘要应为32个十六进制字符: %s", got)
	}
	if MD5Hash("a") == MD5Hash("b") {
		t.Error("不同输入摘要不应相同")
	}
}
