package helpers

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var AppLogger *QLogger
var WebLogger *QLogger

type QLogger struct {
	*log.Logger
	rotate    bool
	console   bool
	lumLogger *lumberjack.Logger
}

func (q *QLogger) Close() {
	if q.lumLogger != nil {
		q.lumLogger.Close()
	}
}

func (q *QLogger) Infof(format string, args ...interface{}) {
	q.Logger.Printf("[INFO] "+format, args...)
}

func (q *QLogger) Info(format string) {
	q.Logger.Println("[INFO] " + format)
}

func (q *QLogger) Debugf(format string, args ...interface{}) {
	q.Logger.Printf("[DEBUG] "+format, args...)
}

func (q *QLogger) Debug(format string) {
	q.Logger.Println("[DEBUG] " + format)
}

func (q *QLogger) Errorf(format string, args ...interface{}) {
	q.Logger.Printf("[ERROR] "+format, args...)
}

func (q *QLogger) Error(format string) {
	q.Logger.Println("[ERROR] " + format)
}

func (q *QLogger) Fatalf(format string, args ...interface{}) {
	q.Logger.Fatalf("[FATAL] "+format, args...)
}

func (q *QLogger) Warnf(format string, args ...interface{}) {
	q.Logger.Printf("[WARN] "+format, args...)
}

func (q *QLogger) Warn(format string) {
	q.Logger.Println("[WARN] " + format)
}

// NewLogger 创建日志实例，日志文件位于ConfigDir/logs下
func NewLogger(logFileName string, isConsole bool, rotate bool) *QLogger {
	logDir := filepath.Join(ConfigDir, "logs")
	_ = os.MkdirAll(logDir, 0755)
	logFile := filepath.Join(logDir, logFileName)

	var lumLogger *lumberjack.Logger
	var writers []io.Writer

	if rotate {
		lumLogger = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // 单位MB
			MaxBackups: 3,
			MaxAge:     28, // 单位天
			Compress:   true,
		}
		writers = append(writers, lumLogger)
	} else {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Printf("打开日志文件失败: %v\n", err)
		} else {
			writers = append(writers, f)
		}
	}

	if isConsole {
		writers = append(writers, os.Stdout)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return &QLogger{
		Logger:    log.New(io.MultiWriter(writers...), "", log.LstdFlags|log.Lmicroseconds),
		rotate:    rotate,
		console:   isConsole,
		lumLogger: lumLogger,
	}
}
