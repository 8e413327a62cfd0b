package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteOutputs(t *testing.T) {
	var result map[string]json.RawMessage
	if err := json.Unmarshal([]byte(`{"reference":"ibapi-paper.png","matched":true,"result":{"mean_diff":1.5},"regions":[],"size":42}`), &result); err != nil {
		t.Fatal(err)
	}

	var buffer bytes.Buffer
	if err := writeOutputs(&buffer, result); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "matched=true\nreference=ibapi-paper.png\nregions=[]\nresult={\"mean_diff\":1.5}\nsize=42\n"
	if diff := cmp.Diff(want, buffer.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
