package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestRunDemo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"7"}, env(map[string]string{"DHT22_DRIVER": "demo", "APP_ENV": "prod"}), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}

	var rec struct {
		Celsius  float64 `json:"celsius"`
		Humidity float64 `json:"humidity"`
		Error    *string `json:"error"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q err=%v", stdout.String(), err)
	}
	if rec.Error == nil {
		t.Fatalf("error field missing: %s", stdout.String())
	}
	if *rec.Error != "" && *rec.Error != "NO_DATA" {
		t.Fatalf("error=%q", *rec.Error)
	}
	if !strings.Contains(stdout.String(), `"humidity":`) {
		t.Fatalf("output=%s", stdout.String())
	}
}

func TestRunInvalidPin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"GPIO99"}, env(map[string]string{"DHT22_DRIVER": "demo"}), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit=%d want=1", code)
	}
	want := `{"celsius":0.00,"humidity":0.00,"error":"INVALID_GPIO"}` + "\n"
	if stdout.String() != want {
		t.Fatalf("stdout=%q want=%q", stdout.String(), want)
	}
}

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"7", "11"}} {
		var stdout, stderr bytes.Buffer
		if code := run(args, env(nil), &stdout, &stderr); code != 1 {
			t.Fatalf("args=%v exit=%d want=1", args, code)
		}
		if stdout.Len() != 0 {
			t.Fatalf("args=%v stdout=%q", args, stdout.String())
		}
		if !strings.Contains(stderr.String(), "usage") {
			t.Fatalf("stderr=%q", stderr.String())
		}
	}
}

func TestRunUnknownDriver(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"7"}, env(map[string]string{"DHT22_DRIVER": "wiringpi"}), &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d want=1", code)
	}
}
