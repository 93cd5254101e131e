package tripplanner_test

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// マルチステージビルドの確認: ビルドステージと実行ステージが存在すること
	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	// 最終ステージは軽量イメージであること
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") && !strings.Contains(lastFrom, "alpine") && !strings.Contains(lastFrom, "scratch") {
		t.Errorf("final stage should use a minimal base image (distroless/alpine/scratch), got: %s", lastFrom)
	}
}

func TestDockerfileBinaryAndEntrypoint(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// バイナリ名がtripplannerであること
	if !strings.Contains(content, "./cmd/tripplanner") {
		t.Error("Dockerfile should build ./cmd/tripplanner")
	}
	if !strings.Contains(content, "ENTRYPOINT") {
		t.Error("Dockerfile should contain ENTRYPOINT")
	}
	// distrolessにはシェルが無いため、ヘルスチェックはサブコマンドで行う
	if !strings.Contains(content, `"healthcheck"`) {
		t.Error("Dockerfile HEALTHCHECK should use the healthcheck subcommand")
	}
}

func TestRuntimeConfigTemplate(t *testing.T) {
	var values map[string]string
	if err := json.Unmarshal([]byte(readFile(t, "runtime-config.json")), &values); err != nil {
		t.Fatalf("runtime-config.json should be valid JSON: %v", err)
	}

	// デプロイ時に置換されるプレースホルダが定義されていること
	for _, key := range []string{"FIREBASE_TENANT_ID", "API_BASE_URL"} {
		v, ok := values[key]
		if !ok {
			t.Errorf("runtime-config.json should define %s", key)
			continue
		}
		if !strings.HasPrefix(v, "${") {
			t.Errorf("%s should be a placeholder, got %q", key, v)
		}
	}
}

func TestDockerComposeServices(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	for _, svc := range []string{"watcher:", "migrate:", "db:"} {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}
	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use PostgreSQL image")
	}
}

func TestDockerComposeNetworks(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	// DBは内部ネットワークのみに接続する
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true)")
	}
	// 外部APIへの通信はwatcherのみ許可する
	if !strings.Contains(content, "external") {
		t.Error("docker-compose.yml should define an external network for watcher egress")
	}
}
