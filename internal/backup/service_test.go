package backup

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"DSync-Ops/internal/helpers"
	"DSync-Ops/internal/models"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "backup-test")
	if err != nil {
		panic(err)
	}
	helpers.ConfigDir = dir
	helpers.AppLogger = helpers.NewLogger("test.log", false, false)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// fakeExecutor 记录收到的配置文件内容并返回预设结果
type fakeExecutor struct {
	result     *ExecutorResult
	err        error
	panicMsg   string
	configPath string
	config     ExecutorConfig
}

func (f *fakeExecutor) Run(ctx context.Context, configPath string) (*ExecutorResult, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.configPath = configPath
	if data, err := os.ReadFile(configPath); err == nil {
		_ = json.Unmarshal(data, &f.config)
	}
	return f.result, f.err
}

func newTestService(t *testing.T, exec ExecutorClient) (*Service, *memBackupRepo, *memHistoryRepo) {
	t.Helper()
	jobs := newMemBackupRepo()
	history := newMemHistoryRepo()
	svc := NewService(jobs, history, exec, nil, t.TempDir(), t.TempDir())
	return svc, jobs, history
}

func validRequest() *CreateRequest {
	return &CreateRequest{
		BackupName:       "orders",
		DbEngine:         "PostgreSQL",
		ConnectionString: "postgres://user:pass@db:5432/orders",
		DatabaseName:     "orders",
		BackupType:       "full",
	}
}

// waitForStatus 轮询等待后台协程写入终态
func waitForStatus(t *testing.T, jobs *memBackupRepo, id uint, want models.BackupStatus) *models.BackupJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.GetByID(id)
		if err != nil {
			t.Fatalf("查询任务失败: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := jobs.GetByID(id)
	t.Fatalf("等待任务 %d 进入状态 %s 超时, 当前: %+v", id, want, job)
	return nil
}

func TestCreateValidation(t *testing.T) {
	svc, jobs, _ := newTestService(t, &fakeExecutor{})

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"缺少名称", func(r *CreateRequest) { r.BackupName = "" }},
		{"非法引擎", func(r *CreateRequest) { r.DbEngine = "MySQL" }},
		{"缺少连接串", func(r *CreateRequest) { r.ConnectionString = "  " }},
		{"缺少库名", func(r *CreateRequest) { r.DatabaseName = "" }},
		{"非法备份类型", func(r *CreateRequest) { r.BackupType = "incremental" }},
		{"cron字段数错误", func(r *CreateRequest) { r.CronSchedule = "0 0 * *" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			_, err := svc.Create(req)
			if err == nil {
				t.Fatal("期望校验错误")
			}
			if !IsValidationError(err) {
				t.Fatalf("期望ValidationError, 实际 %T: %v", err, err)
			}
		})
	}

	if jobs.count() != 0 {
		t.Errorf("校验失败时不应落库, 实际 %d 行", jobs.count())
	}
}

func TestCreateReturnsInProgress(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 0, Stdout: `{"success":true,"file_size":1,"duration_seconds":1}`}}
	svc, jobs, _ := newTestService(t, exec)

	job, err := svc.Create(validRequest())
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	if job.ID == 0 {
		t.Error("创建后应分配任务ID")
	}
	if job.Status != models.StatusInProgress {
		t.Errorf("同步返回的状态应为in_progress, 实际 %s", job.Status)
	}
	waitForStatus(t, jobs, job.ID, models.StatusCompleted)
}

func TestExecutionSuccess(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{
		ExitCode: 0,
		Stdout:   `{"success":true,"file_size":1024,"duration_seconds":3}`,
	}}
	svc, jobs, history := newTestService(t, exec)

	created, err := svc.Create(validRequest())
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	job := waitForStatus(t, jobs, created.ID, models.StatusCompleted)
	if job.FileSize == nil || *job.FileSize != 1024 {
		t.Errorf("file_size应为1024, 实际 %v", job.FileSize)
	}
	if job.CompletedAt == nil {
		t.Error("completed_at应已写入")
	}

	entries, _ := history.ListByBackupID(created.ID, 10)
	if len(entries) != 1 {
		t.Fatalf("应有1条历史记录, 实际 %d", len(entries))
	}
	e := entries[0]
	if e.Status != models.StatusCompleted {
		t.Errorf("历史状态应为completed, 实际 %s", e.Status)
	}
	if e.DurationSeconds == nil || *e.DurationSeconds != 3 {
		t.Errorf("duration_seconds应为3, 实际 %v", e.DurationSeconds)
	}
	if e.FileSize == nil || *e.FileSize != 1024 {
		t.Errorf("历史file_size应为1024, 实际 %v", e.FileSize)
	}
	if e.TriggeredBy != models.TriggerManual {
		t.Errorf("triggered_by应为manual, 实际 %s", e.TriggeredBy)
	}

	// 执行器配置文件内容与契约一致，且执行后被清理
	if exec.config.BackupName != "orders" || exec.config.DbEngine != "PostgreSQL" ||
		exec.config.DatabaseName != "orders" || exec.config.BackupType != "full" {
		t.Errorf("执行器配置内容不正确: %+v", exec.config)
	}
	if exec.config.ConnectionString != "postgres://user:pass@db:5432/orders" {
		t.Error("执行器配置中的连接串应为明文")
	}
	if _, err := os.Stat(exec.configPath); !os.IsNotExist(err) {
		t.Error("临时配置文件执行后应被删除")
	}
}

func TestConnectionStringEncryptedAtRest(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 0, Stdout: `{"success":true,"file_size":1,"duration_seconds":1}`}}
	svc, jobs, _ := newTestService(t, exec)

	created, err := svc.Create(validRequest())
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	job, _ := jobs.GetByID(created.ID)
	if job.ConnectionString == "postgres://user:pass@db:5432/orders" {
		t.Error("连接串不应明文落库")
	}
	plain, err := helpers.Decrypt(job.ConnectionString)
	if err != nil || plain != "postgres://user:pass@db:5432/orders" {
		t.Errorf("解密后应还原连接串, 实际 %q, err=%v", plain, err)
	}
}

func TestExecutionReportedFailure(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{
		ExitCode: 0,
		Stdout:   `{"success":false,"error_message":"disk full"}`,
	}}
	svc, jobs, history := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	job := waitForStatus(t, jobs, created.ID, models.StatusFailed)
	if job.ErrorMessage == nil || *job.ErrorMessage != "disk full" {
		t.Errorf("error_message应为disk full, 实际 %v", job.ErrorMessage)
	}

	entries, _ := history.ListByBackupID(created.ID, 10)
	if len(entries) != 1 || entries[0].Status != models.StatusFailed {
		t.Errorf("历史记录应为failed: %+v", entries)
	}
}

func TestExecutionDefaultFailureMessage(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 0, Stdout: `{"success":false}`}}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	job := waitForStatus(t, jobs, created.ID, models.StatusFailed)
	if job.ErrorMessage == nil || *job.ErrorMessage != "Backup failed" {
		t.Errorf("缺省错误信息应为Backup failed, 实际 %v", job.ErrorMessage)
	}
}

func TestExecutionNonZeroExit(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{
		ExitCode: 1,
		Stderr:   "permission denied",
	}}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	job := waitForStatus(t, jobs, created.ID, models.StatusFailed)
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "permission denied") {
		t.Errorf("error_message应包含stderr内容, 实际 %v", job.ErrorMessage)
	}
}

func TestExecutionNonZeroExitFallsBackToStdout(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 2, Stdout: "boom"}}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	job := waitForStatus(t, jobs, created.ID, models.StatusFailed)
	if job.ErrorMessage == nil || *job.ErrorMessage != "boom" {
		t.Errorf("stderr为空时应使用stdout, 实际 %v", job.ErrorMessage)
	}
}

func TestContractViolationNegativeSize(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{
		ExitCode: 0,
		Stdout:   `{"success":true,"file_size":-1,"duration_seconds":3}`,
	}}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	waitForStatus(t, jobs, created.ID, models.StatusFailed)
}

func TestContractViolationMissingDuration(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{
		ExitCode: 0,
		Stdout:   `{"success":true,"file_size":512}`,
	}}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	waitForStatus(t, jobs, created.ID, models.StatusFailed)
}

func TestMalformedExecutorOutput(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 0, Stdout: "not a json"}}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	waitForStatus(t, jobs, created.ID, models.StatusFailed)
}

func TestPanicBoundary(t *testing.T) {
	exec := &fakeExecutor{panicMsg: "executor exploded"}
	svc, jobs, _ := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	job := waitForStatus(t, jobs, created.ID, models.StatusFailed)
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "executor exploded") {
		t.Errorf("panic信息应写入error_message, 实际 %v", job.ErrorMessage)
	}
}

func TestCreateWithCronSchedule(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 0, Stdout: `{"success":true,"file_size":1,"duration_seconds":1}`}}
	svc, jobs, _ := newTestService(t, exec)

	req := validRequest()
	req.CronSchedule = "*/5 * * * *"
	created, err := svc.Create(req)
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	job, _ := jobs.GetByID(created.ID)
	if !job.IsScheduled {
		t.Error("带cron创建时应启用调度")
	}
	if job.CronSchedule == nil || *job.CronSchedule != "*/5 * * * *" {
		t.Errorf("cron表达式未保存: %v", job.CronSchedule)
	}
	if job.NextRunAt == nil {
		t.Fatal("next_run_at应已计算")
	}
	if job.NextRunAt.Minute()%5 != 0 {
		t.Errorf("next_run_at分钟应为5的倍数: %v", job.NextRunAt)
	}
	waitForStatus(t, jobs, created.ID, models.StatusCompleted)
}

func TestDeriveFileName(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 34, 56, 789000000, time.UTC)
	tests := []struct {
		engine models.SourceEngine
		suffix string
	}{
		{models.EnginePostgreSQL, ".dump"},
		{models.EngineMariaDB, ".sql"},
		{models.EngineMongoDB, ".gz"},
		{models.EngineOracle, ".dmp"},
	}
	for _, tt := range tests {
		name := deriveFileName("nightly", tt.engine, now)
		if !strings.HasSuffix(name, tt.suffix) {
			t.Errorf("引擎 %s 的文件名应以 %s 结尾, 实际 %s", tt.engine, tt.suffix, name)
		}
		base := strings.TrimSuffix(name, tt.suffix)
		if strings.ContainsAny(base, ":.") {
			t.Errorf("时间戳中的冒号和点应被替换: %s", name)
		}
		if !strings.HasPrefix(name, "nightly_") {
			t.Errorf("文件名应以任务名开头: %s", name)
		}
	}
}

func TestDeleteRemovesRowsAndFile(t *testing.T) {
	exec := &fakeExecutor{result: &ExecutorResult{ExitCode: 0, Stdout: `{"success":true,"file_size":1,"duration_seconds":1}`}}
	svc, jobs, history := newTestService(t, exec)

	created, _ := svc.Create(validRequest())
	waitForStatus(t, jobs, created.ID, models.StatusCompleted)

	// 预置一个备份文件，删除任务时应被一并清除
	job, _ := jobs.GetByID(created.ID)
	if err := os.WriteFile(job.FilePath, []byte("dump"), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if got, _ := jobs.GetByID(created.ID); got != nil {
		t.Error("任务行应已删除")
	}
	entries, _ := history.ListByBackupID(created.ID, 10)
	if len(entries) != 0 {
		t.Error("历史记录应已删除")
	}
	if helpers.PathExists(job.FilePath) {
		t.Error("备份文件应已删除")
	}

	if err := svc.Delete(created.ID); err != ErrNotFound {
		t.Errorf("重复删除应返回ErrNotFound, 实际 %v", err)
	}
}
