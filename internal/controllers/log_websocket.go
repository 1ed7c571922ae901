package controllers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"DSync-Ops/internal/helpers"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LogEntry 发送给前端的日志条目
type LogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// 日志行格式：2026/08/31 12:33:09.530499 [INFO] 备份任务 3 执行完成
var logLinePattern = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{6}) \[(\w+)\] (.+)$`)

// parseLogLine 解析日志行，无法解析时整行作为info级消息
func parseLogLine(line string) LogEntry {
	entry := LogEntry{
		Level:     "info",
		Message:   line,
		Timestamp: time.Now().Format("2006-01-02 15:04:05.000000"),
	}

	matches := logLinePattern.FindStringSubmatch(line)
	if len(matches) != 4 {
		return entry
	}

	entry.Timestamp = matches[1]
	entry.Message = matches[3]
	switch strings.ToLower(matches[2]) {
	case "warn", "warning":
		entry.Level = "warn"
	case "error", "err":
		entry.Level = "error"
	case "debug":
		entry.Level = "debug"
	default:
		entry.Level = "info"
	}
	return entry
}

// resolveLogPath 将请求中的文件名解析到日志目录内，拒绝目录穿越
func resolveLogPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("未提供日志文件路径")
	}
	logsDir := filepath.Join(helpers.ConfigDir, "logs")
	full := filepath.Join(logsDir, filepath.Clean("/"+name))
	if !strings.HasPrefix(full, logsDir+string(filepath.Separator)) {
		return "", fmt.Errorf("非法的日志文件路径")
	}
	return full, nil
}

type OldLogsRequest struct {
	Path      string `json:"path" form:"path"`
	Pos       int64  `json:"pos" form:"pos"`
	Limit     int    `json:"limit" form:"limit"`
	Direction string `json:"direction" form:"direction"` // forward（默认）或 backward
}

type OldLogsResponse struct {
	Entries  []LogEntry `json:"entries"`
	Pos      int64      `json:"pos"`
	StartPos int64      `json:"start_pos"`
}

// GetOldLogs 分页读取历史日志
func GetOldLogs(c *gin.Context) {
	var req *OldLogsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	direction := "forward"
	if req.Direction == "backward" {
		direction = "backward"
	}

	// pos为0且正向读取说明已经到了文件开头
	if req.Pos == 0 && direction == "forward" {
		c.JSON(http.StatusOK, OldLogsResponse{Entries: make([]LogEntry, 0)})
		return
	}

	fullLogPath, err := resolveLogPath(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !helpers.PathExists(fullLogPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "日志文件不存在"})
		return
	}

	lines, newPos, err := helpers.ReadLines(fullLogPath, req.Pos, req.Limit, direction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("读取日志文件失败: %v", err)})
		return
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseLogLine(line))
	}

	c.JSON(http.StatusOK, OldLogsResponse{
		Entries:  entries,
		Pos:      newPos,
		StartPos: req.Pos,
	})
}

// DownloadLogFile 下载日志文件
func DownloadLogFile(c *gin.Context) {
	fullLogPath, err := resolveLogPath(c.Query("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !helpers.PathExists(fullLogPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "日志文件不存在"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(fullLogPath)))
	c.Header("Content-Type", "application/octet-stream")
	c.File(fullLogPath)
}

func wsSendError(conn *websocket.Conn, format string, args ...interface{}) {
	entry := LogEntry{
		Level:     "error",
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().Format("2006-01-02 15:04:05.000000"),
	}
	if err := conn.WriteJSON(entry); err != nil {
		helpers.AppLogger.Errorf("发送WebSocket错误消息失败: %v", err)
	}
}

// LogWebSocket 实时推送日志新增内容，历史日志走GetOldLogs
func LogWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		helpers.AppLogger.Errorf("升级WebSocket连接失败: %v", err)
		return
	}
	defer conn.Close()

	fullLogPath, err := resolveLogPath(c.Query("path"))
	if err != nil {
		wsSendError(conn, "错误: %v", err)
		return
	}
	if !helpers.PathExists(fullLogPath) {
		wsSendError(conn, "错误: 日志文件不存在: %s", fullLogPath)
		return
	}

	file, err := os.Open(fullLogPath)
	if err != nil {
		wsSendError(conn, "错误: 打开日志文件失败: %v", err)
		return
	}
	defer file.Close()

	// 只推送新增内容
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		wsSendError(conn, "错误: 定位文件末尾失败: %v", err)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		wsSendError(conn, "错误: 创建文件监听器失败: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(fullLogPath); err != nil {
		wsSendError(conn, "错误: 添加文件到监听器失败: %v", err)
		return
	}

	closed := make(chan struct{})
	defer close(closed)

	// 消费客户端消息，仅用于感知连接断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go tailFile(conn, file, closed)

	for {
		select {
		case <-closed:
			return
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			wsSendError(conn, "错误: 文件监控失败: %v", werr)
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// tailFile 持续读取文件新增内容并按行推送
func tailFile(conn *websocket.Conn, file *os.File, closed <-chan struct{}) {
	buffer := make([]byte, 4096)
	var leftover []byte // 上次读取的不完整行
	for {
		select {
		case <-closed:
			return
		default:
		}

		n, err := file.Read(buffer)
		if err != nil {
			if err != io.EOF {
				wsSendError(conn, "错误: 读取日志文件失败: %v", err)
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}

		content := append(leftover, buffer[:n]...)
		lines := strings.Split(string(content), "\n")
		leftover = []byte(lines[len(lines)-1])
		lines = lines[:len(lines)-1]

		for _, line := range lines {
			if line == "" {
				continue
			}
			if err := conn.WriteJSON(parseLogLine(line)); err != nil {
				return
			}
		}
	}
}
