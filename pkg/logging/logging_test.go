package logging_test

import (
	"testing"

	"github.com/kbase/collections/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for name, testcase := range map[string]struct {
		when    string
		then    zapcore.Level
		thenErr bool
	}{
		"empty":   {when: "", then: zapcore.InfoLevel},
		"debug":   {when: "debug", then: zapcore.DebugLevel},
		"upper":   {when: "WARN", then: zapcore.WarnLevel},
		"error":   {when: "error", then: zapcore.ErrorLevel},
		"unknown": {when: "verbose", then: zapcore.InfoLevel, thenErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := logging.ParseLevel(testcase.when)
			if (err != nil) != testcase.thenErr {
				t.Errorf("unexpected error: %v", err)
			}
			if got != testcase.then {
				t.Errorf("unexpected level: %s", got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := logging.New("info", "yaml"); err == nil {
		t.Error("unknown format is accepted")
	}
	z, err := logging.New("debug", "console")
	if err != nil {
		t.Fatal(err)
	}
	if !z.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug is not enabled")
	}
}

func TestStd(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := logging.Std(zap.New(core), "reaper")
	logger.Printf("match %s is expired", "m1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("unexpected entries: %v", entries)
	}
	if entries[0].Message != "match m1 is expired" {
		t.Errorf("unexpected message: %q", entries[0].Message)
	}
	if c := entries[0].ContextMap()["component"]; c != "reaper" {
		t.Errorf("unexpected component: %v", c)
	}
}
