package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
)

// ExecutorConfig 写入临时文件交给外部执行器的配置。
// 通过文件传递，避免连接串出现在进程参数里。
type ExecutorConfig struct {
	BackupName       string `json:"backup_name"`
	DbEngine         string `json:"db_engine"`
	ConnectionString string `json:"connection_string"`
	DatabaseName     string `json:"database_name"`
	BackupType       string `json:"backup_type"`
	FilePath         string `json:"file_path"`
}

// ExecutorResult 子进程执行结果，stdout/stderr全量缓冲
type ExecutorResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecutorClient 外部备份执行器的调用边界，便于用假实现测试状态机
type ExecutorClient interface {
	Run(ctx context.Context, configPath string) (*ExecutorResult, error)
}

// SubprocessExecutor 以子进程方式调用外部执行器：
// argv为 [bin, backup, create, <配置文件路径>]。
// 不设置超时，执行器挂起会挂起所属的后台任务（已知限制）。
type SubprocessExecutor struct {
	BinPath string
}

func NewSubprocessExecutor(binPath string) *SubprocessExecutor {
	return &SubprocessExecutor{BinPath: binPath}
}

func (e *SubprocessExecutor) Run(ctx context.Context, configPath string) (*ExecutorResult, error) {
	cmd := exec.CommandContext(ctx, e.BinPath, "backup", "create", configPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecutorResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// 进程启动失败
		return nil, err
	}
	result.ExitCode = 0
	return result, nil
}

// WriteExecutorConfig 将执行器配置序列化到临时文件，返回文件路径
func WriteExecutorConfig(tmpDir string, cfg *ExecutorConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(tmpDir, "backup-config-*.json")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// ExecutorReport 执行器在退出码为0时输出的JSON结果
type ExecutorReport struct {
	Success         bool     `json:"success"`
	ErrorMessage    *string  `json:"error_message"`
	FilePath        *string  `json:"file_path"`
	FileSize        *float64 `json:"file_size"`
	DurationSeconds *float64 `json:"duration_seconds"`
}
