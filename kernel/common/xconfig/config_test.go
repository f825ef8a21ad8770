package xconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvConf(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "env.yaml")
	content := "rootPath: " + dir + "\ndockConf: dock.yaml\nmetricSwitch: true\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	envCfg, err := LoadEnvConf(file)
	if err != nil {
		t.Fatal(err)
	}
	if envCfg.RootPath != dir || !envCfg.MetricSwitch {
		t.Errorf("unexpected env conf: %+v", envCfg)
	}
	if got := envCfg.GenConfFilePath(envCfg.DockConf); got != filepath.Join(dir, "conf", "dock.yaml") {
		t.Errorf("unexpected dock conf path %s", got)
	}
	if got := envCfg.GenDataAbsPath("101"); got != filepath.Join(dir, "data", "101") {
		t.Errorf("unexpected data path %s", got)
	}
	if envCfg.LogConf != "log.yaml" {
		t.Errorf("default log conf lost")
	}
}

func TestRootPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "env.yaml")
	os.WriteFile(file, []byte("rootPath: /not/exist\n"), 0644)
	t.Setenv(XEnvVarRootPath, dir)

	envCfg, err := LoadEnvConf(file)
	if err != nil {
		t.Fatal(err)
	}
	if envCfg.RootPath != dir {
		t.Errorf("env root path should win, got %s", envCfg.RootPath)
	}
}
