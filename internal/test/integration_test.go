// integration_test.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"routeget/internal/connect/connecttest"
	"routeget/internal/model"
)

// binFile - путь к бинарнику routeget. Без него тесты пропускаются.
var binFile = os.Getenv("BIN_FILE")

func TestMain(m *testing.M) {
	if binFile == "" {
		log.Print("env BIN_FILE is not set, integration tests skipped")
		os.Exit(0)
	}
	abs, err := filepath.Abs(binFile)
	if err != nil {
		log.Fatal(err)
	}
	binFile = abs
	os.Exit(m.Run())
}

func newBackend() *connecttest.Server {
	srv := connecttest.NewServer()
	srv.Devices = []model.Device{{DongleID: "abc", IsOnline: true}}
	srv.LiveFiles["abc"] = []string{"rlog0", "qlog0"}
	srv.Routes["abc"] = []model.Route{{Fullname: "abc|2024-06-13--15-59-30"}}
	srv.Files["abc|2024-06-13--15-59-30"] = map[string][]string{
		"cameras": {srv.FileURL("fcamera", "abc", "2024-06-13--15-59-30", 0, "fcamera.hevc")},
		"qlogs":   {srv.FileURL("qlog", "abc", "2024-06-13--15-59-30", 0, "qlog.bz2")},
	}
	return srv
}

// TestSinglePass проверяет один проход: загрузку в корень и файл статуса.
func TestSinglePass(t *testing.T) {
	srv := newBackend()
	defer srv.Close()

	workDir := t.TempDir()
	cmd := newCommand(workDir, srv, nil, "-device_upload", "-categories", "qlogs", "-s", "status.json")
	if err := cmd.Run(); err != nil {
		t.Fatalf("routeget failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(workDir, "downloads", "abc", "2024-06-13--15-59-30", "0", "qlog.bz2")); err != nil {
		t.Errorf("qlog not downloaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "downloads", "abc", "2024-06-13--15-59-30", "0", "fcamera.hevc")); !os.IsNotExist(err) {
		t.Errorf("unselected category downloaded: %v", err)
	}
	if got := srv.Uploaded("abc"); len(got) != 1 || got[0] != "rlog0.bz2" {
		t.Errorf("Expected upload of rlog0.bz2, got %v", got)
	}

	buf, err := os.ReadFile(filepath.Join(workDir, "status.json"))
	if err != nil {
		t.Fatalf("read status failed: %v", err)
	}
	var report model.Report
	if err := json.Unmarshal(buf, &report); err != nil {
		t.Fatalf("decode status failed: %v", err)
	}
	if report.Summary.Downloaded != 1 {
		t.Errorf("Expected 1 downloaded file, got %d", report.Summary.Downloaded)
	}
}

// TestCredentialRequired проверяет, что без учётных данных запуск отклоняется.
func TestCredentialRequired(t *testing.T) {
	srv := newBackend()
	defer srv.Close()

	cmd := newCommand(t.TempDir(), srv, map[string]string{"CONNECT_JWT": ""})
	if err := cmd.Run(); err == nil {
		t.Fatal("Expected non-zero exit without CONNECT_JWT")
	}
	if reqs := srv.Requests(); len(reqs) != 0 {
		t.Errorf("Expected no backend requests, got %v", reqs)
	}
}

// TestEndlessWithStatusAPI проверяет бесконечный режим, API статуса и остановку по сигналу.
func TestEndlessWithStatusAPI(t *testing.T) {
	srv := newBackend()
	defer srv.Close()

	addr := freeAddr(t)
	cmd := newCommand(t.TempDir(), srv, map[string]string{
		"STATUS_ADDR":           addr,
		"MANAGER_PASS_INTERVAL": "100ms",
	}, "-endless")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer stopProcess(cmd)

	baseURL := "http://" + addr + "/api"
	if err := waitFor(baseURL+"/passes/latest", 10*time.Second); err != nil {
		t.Fatal(err)
	}

	var list struct {
		Passes []model.Report `json:"passes"`
	}
	deadline := time.Now().Add(10 * time.Second)
	for len(list.Passes) < 2 && time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/passes")
		if err != nil {
			t.Fatal(err)
		}
		err = json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	if len(list.Passes) < 2 {
		t.Fatalf("Expected at least 2 passes, got %d", len(list.Passes))
	}

	// повторный проход ничего не загружает
	latest := list.Passes[0]
	if latest.Summary.Downloaded != 0 || latest.Summary.Skipped != 2 {
		t.Errorf("Expected all files skipped on repeated pass, got %+v", latest.Summary)
	}
	if n := srv.Downloads("/connectdata/qlog/abc/2024-06-13--15-59-30/0/qlog.bz2"); n != 1 {
		t.Errorf("Expected qlog downloaded once, got %d", n)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Wait(); err != nil {
		t.Errorf("Expected clean exit on SIGTERM, got %v", err)
	}
}

// Вспомогательные функции

func newCommand(workDir string, srv *connecttest.Server, env map[string]string, args ...string) *exec.Cmd {
	cmd := exec.Command(binFile, args...)
	cmd.Dir = workDir

	vars := map[string]string{
		"CONNECT_BASE_URL": srv.URL,
		"CONNECT_JWT":      connecttest.JWT,
		"LOG_LEVEL":        "DEBUG",
	}
	for k, v := range env {
		vars[k] = v
	}
	cmd.Env = os.Environ()
	for k, v := range vars {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	cmd.Stdout = &logWriter{prefix: "ROUTEGET-OUT: "}
	cmd.Stderr = &logWriter{prefix: "ROUTEGET-ERR: "}
	return cmd
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

// stopProcess добивает процесс, если тест завершился раньше него.
func stopProcess(cmd *exec.Cmd) {
	if cmd.ProcessState != nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		log.Printf("Failed to kill process: %v", err)
		return
	}
	cmd.Wait()
}

// waitFor ожидает, пока по url не будет получен ответ 200.
func waitFor(url string, timeout time.Duration) error {
	const interval = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tm := time.NewTimer(0)
	defer tm.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s", url)
		case <-tm.C:
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
			tm.Reset(interval)
		}
	}
}

type logWriter struct {
	prefix string
}

func (lw *logWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			log.Printf("%s%s", lw.prefix, line)
		}
	}
	return len(p), nil
}
